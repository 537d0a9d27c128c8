package services

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"context"

	"github.com/chromedp/chromedp"
)

// LevelCardService renders a small level-progress card as a PNG by rendering
// an HTML template in headless Chrome.
type LevelCardService struct {
	logger *slog.Logger
	tmpl   *template.Template
}

type levelCardData struct {
	Username     string
	AvatarLetter string
	Level        int
	TotalXP      int64
	IntoLevel    int64
	Needed       int64
	Percent      int
}

const levelCardTemplate = `<html><head><style>
body { margin: 0; font-family: 'Segoe UI', sans-serif; }
#card { width: 460px; padding: 24px; background: linear-gradient(135deg, %232b2d31, %231e1f22); color: %23fff; border-radius: 12px; box-sizing: border-box; }
.row { display: flex; align-items: center; gap: 16px; }
.avatar { width: 56px; height: 56px; border-radius: 50%; background: %235865f2; display: flex; align-items: center; justify-content: center; font-size: 28px; font-weight: 700; }
.name { font-size: 20px; font-weight: 600; }
.level { color: %2357f287; font-size: 14px; }
.bar { margin-top: 16px; height: 10px; border-radius: 5px; background: %23404249; overflow: hidden; }
.fill { height: 100%; background: %235865f2; width: {{.Percent}}%; }
.xp { margin-top: 8px; font-size: 12px; color: %23b5bac1; }
</style></head><body>
<div id="card">
  <div class="row">
    <div class="avatar">{{.AvatarLetter}}</div>
    <div>
      <div class="name">{{.Username}}</div>
      <div class="level">Level {{.Level}} · {{.TotalXP}} XP total</div>
    </div>
  </div>
  <div class="bar"><div class="fill"></div></div>
  <div class="xp">{{.IntoLevel}} / {{.Needed}} XP to next level</div>
</div>
</body></html>`

func NewLevelCardService() *LevelCardService {
	return &LevelCardService{
		logger: slog.With(slog.String("service", "level_card")),
		tmpl:   template.Must(template.New("levelcard").Parse(levelCardTemplate)),
	}
}

// GenerateLevelCard renders the card for the given progress snapshot.
func (s *LevelCardService) GenerateLevelCard(ctx context.Context, username string, level int, totalXP, intoLevel, needed int64) ([]byte, error) {
	avatarLetter := "?"
	if username != "" {
		avatarLetter = strings.ToUpper(username[:1])
	}

	percent := 0
	if needed > 0 {
		percent = int(intoLevel * 100 / needed)
	}

	var buf bytes.Buffer
	err := s.tmpl.Execute(&buf, levelCardData{
		Username:     username,
		AvatarLetter: avatarLetter,
		Level:        level,
		TotalXP:      totalXP,
		IntoLevel:    intoLevel,
		Needed:       needed,
		Percent:      percent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to execute level card template: %w", err)
	}

	htmlContent := strings.ReplaceAll(buf.String(), "\n", "")

	chromedpCtx, cancel := chromedp.NewContext(ctx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancel()

	chromedpCtx, cancel = context.WithTimeout(chromedpCtx, 15*time.Second)
	defer cancel()

	var imageBytes []byte
	err = chromedp.Run(chromedpCtx,
		chromedp.Navigate("data:text/html,"+htmlContent),
		chromedp.WaitVisible("#card", chromedp.ByID),
		chromedp.Sleep(100*time.Millisecond),
		chromedp.Screenshot("#card", &imageBytes, chromedp.ByID),
	)
	if err != nil {
		s.logger.Error("Failed to render level card",
			slog.String("username", username),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to render level card: %w", err)
	}

	return imageBytes, nil
}
