package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/luminalearn/questboard/questboard/database/repositories"
)

const shareCardTemplate = `
<!DOCTYPE html>
<html>
<head>
<style>
  body { margin: 0; font-family: 'Segoe UI', sans-serif; }
  #share-card {
    width: 600px; height: 320px; padding: 32px; box-sizing: border-box;
    background: linear-gradient(135deg, #1e1b4b 0%, #312e81 100%);
    color: #f8fafc; border-radius: 16px;
  }
  .name { font-size: 28px; font-weight: 700; }
  .subtitle { font-size: 14px; color: #a5b4fc; margin-bottom: 24px; }
  .stats { display: flex; gap: 32px; }
  .stat .value { font-size: 36px; font-weight: 700; color: #fbbf24; }
  .stat .label { font-size: 12px; text-transform: uppercase; color: #c7d2fe; }
  .streak { margin-top: 24px; font-size: 18px; }
</style>
</head>
<body>
<div id="share-card">
  <div class="name">{{.Username}}</div>
  <div class="subtitle">Member since {{.MemberSince}}</div>
  <div class="stats">
    <div class="stat"><div class="value">{{.TotalCompleted}}</div><div class="label">Quests Done</div></div>
    <div class="stat"><div class="value">{{.TotalXP}}</div><div class="label">XP Earned</div></div>
    <div class="stat"><div class="value">{{.TotalGold}}</div><div class="label">Gold Earned</div></div>
  </div>
  <div class="streak">🔥 {{.Streak}} day streak</div>
</div>
</body>
</html>`

type shareCardData struct {
	Username       string
	MemberSince    string
	TotalCompleted int
	TotalXP        int64
	TotalGold      int64
	Streak         int
}

// ShareCardService renders a user's stats into a PNG via headless Chrome so
// they can post it elsewhere. Rendering is slow relative to everything else
// here; callers should treat it as an offline operation.
type ShareCardService struct {
	lifecycle *LifecycleManager
	userRepo  repositories.UserRepository
	logger    *slog.Logger
}

func NewShareCardService(lifecycle *LifecycleManager, userRepo repositories.UserRepository) *ShareCardService {
	return &ShareCardService{
		lifecycle: lifecycle,
		userRepo:  userRepo,
		logger:    slog.With(slog.String("service", "share_card")),
	}
}

// Render produces the PNG bytes for the user's current stats.
func (s *ShareCardService) Render(ctx context.Context, userID string) ([]byte, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	start := time.Now()

	user, err := s.userRepo.GetOrCreate(ctx, userID, userID)
	if err != nil {
		return nil, storeError("get profile", err)
	}
	stats, err := s.lifecycle.GetStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	htmlContent, err := s.renderHTML(shareCardData{
		Username:       user.Username,
		MemberSince:    user.Joined.Format("Jan 2006"),
		TotalCompleted: stats.TotalCompleted,
		TotalXP:        stats.TotalXP,
		TotalGold:      stats.TotalGold,
		Streak:         user.Streak,
	})
	if err != nil {
		return nil, err
	}

	chromedpCtx, cancel := chromedp.NewContext(ctx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancel()
	chromedpCtx, cancel = context.WithTimeout(chromedpCtx, 15*time.Second)
	defer cancel()

	var imageBytes []byte
	err = chromedp.Run(chromedpCtx,
		chromedp.Navigate("data:text/html,"+htmlContent),
		chromedp.WaitVisible("#share-card", chromedp.ByID),
		chromedp.Sleep(200*time.Millisecond),
		chromedp.Screenshot("#share-card", &imageBytes, chromedp.ByID),
	)
	if err != nil {
		s.logger.Error("Share card render failed",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return nil, fmt.Errorf("failed to render share card: %w", err)
	}

	s.logger.Info("Share card rendered",
		slog.String("user_id", userID),
		slog.Int("image_size", len(imageBytes)),
		slog.Duration("elapsed", time.Since(start)))
	return imageBytes, nil
}

func (s *ShareCardService) renderHTML(data shareCardData) (string, error) {
	tmpl, err := template.New("share_card").Parse(shareCardTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse share card template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute share card template: %w", err)
	}

	// Data URLs choke on raw # and newlines; the browser decodes %23 back.
	out := strings.ReplaceAll(buf.String(), "#", "%23")
	out = strings.ReplaceAll(out, "\n", "")
	return out, nil
}
