package app

import (
	"context"
	"log/slog"

	"github.com/deusflow/dailybrief/internal/config"
	"github.com/deusflow/dailybrief/internal/email"
	"github.com/deusflow/dailybrief/internal/news"
	"github.com/deusflow/dailybrief/internal/summarize"
	"github.com/deusflow/dailybrief/internal/telegram"
)

// Channel delivers a finished brief. Chinese channels receive the translated
// bundle and are skipped when no Chinese translation exists.
type Channel struct {
	Name    string
	Chinese bool
	Deliver func(ctx context.Context, b summarize.Bundle, topics []news.Topic) bool
}

func channelsFromConfig(cfg *config.Config) []Channel {
	var out []Channel
	if cfg.Email.Enabled {
		s := email.New(cfg.Email)
		out = append(out, Channel{Name: "email", Deliver: s.Deliver})
		if cfg.Email.SendChinese {
			out = append(out, Channel{Name: "email_zh", Chinese: true, Deliver: s.DeliverChinese})
		}
	}
	if cfg.Telegram.Enabled {
		c := telegram.FromConfig(cfg.Telegram)
		out = append(out, Channel{Name: "telegram", Deliver: c.Deliver})
		if cfg.Telegram.SendChinese {
			out = append(out, Channel{Name: "telegram_zh", Chinese: true, Deliver: c.DeliverChinese})
		}
	}
	return out
}

// deliver runs every channel once. Channels already recorded for the day are
// skipped when delivery.skip_if_sent is set.
func (p *Pipeline) deliver(ctx context.Context, log *slog.Logger, res *Result, b summarize.Bundle, translated *summarize.Bundle, topics []news.Topic) map[string]bool {
	if len(p.channels) == 0 {
		return nil
	}
	out := make(map[string]bool, len(p.channels))
	for _, ch := range p.channels {
		bundle := b
		if ch.Chinese {
			if translated == nil || !IsChinese(p.cfg.Translation.TargetLang) {
				log.Warn("no chinese translation, skipping channel", "channel", ch.Name)
				continue
			}
			bundle = *translated
		}
		if p.cfg.Delivery.SkipIfSent && alreadyDelivered(ctx, p.store, res.Day, ch.Name) {
			log.Info("already delivered today, skipping", "channel", ch.Name, "day", res.Day)
			continue
		}

		ok := ch.Deliver(ctx, bundle, topics)
		p.metrics.RecordDelivery(ok)
		out[ch.Name] = ok
		if !ok {
			log.Warn("delivery failed, continuing", "channel", ch.Name)
			continue
		}
		recordDelivery(ctx, p.store, res.Day, ch.Name, res.RunID)
		log.Info("delivered", "channel", ch.Name)
	}
	return out
}
