package runtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/failsift/failsift/internal/adapters/notify/lognotify"
	natsnotify "github.com/failsift/failsift/internal/adapters/notify/nats"
	"github.com/failsift/failsift/internal/adapters/notify/webhook"
	"github.com/failsift/failsift/internal/config"
	"github.com/failsift/failsift/internal/core/ports"
	"github.com/failsift/failsift/internal/domain"
	"github.com/failsift/failsift/internal/features"
)

// buildNotifier selects the notification sink named by the configuration.
func buildNotifier(cfg *config.Config, logger *slog.Logger) (ports.Notifier, error) {
	switch cfg.Notify.Sink {
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     cfg.Notify.Webhook.URL,
			Timeout: cfg.WebhookTimeout(),
		})
	case "nats":
		return natsnotify.New(natsnotify.Config{
			URL:     cfg.Notify.NATS.URL,
			Subject: cfg.Notify.NATS.Subject,
		}, logger)
	default:
		logger.Info("no delivery channel configured, logging notifications")
		return lognotify.New(logger), nil
	}
}

// formatNotification renders the alert subject and body for one pattern.
// The subject names the first few affected services; the body carries the
// full pattern as indented JSON.
func formatNotification(p domain.Pattern, maxServices int) (subject, body string, err error) {
	subject = fmt.Sprintf("[failsift] pattern %s: %d failures in %s",
		p.PatternID, p.FailureCount, serviceSummary(p.AffectedServices, maxServices))

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", "", err
	}
	return subject, string(data), nil
}

// serviceSummary joins up to max service names, folding the rest into a
// "+K more" suffix.
func serviceSummary(services []string, max int) string {
	if len(services) == 0 {
		return "unknown services"
	}
	if max <= 0 || len(services) <= max {
		return strings.Join(services, ", ")
	}
	return fmt.Sprintf("%s +%d more", strings.Join(services[:max], ", "), len(services)-max)
}

// loadVectorizer reads a persisted vocabulary for the feature pipeline.
func loadVectorizer(path string, maxTerms int) (*features.TFIDFVectorizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	v := features.New(features.WithMaxFeatures(maxTerms))
	if err := v.Load(data); err != nil {
		return nil, err
	}
	return v, nil
}

// sameStore reports whether the failure and action stores are one object,
// so Shutdown closes it only once.
func sameStore(a ports.FailureStore, b ports.ActionStore) bool {
	return any(a) == any(b)
}
