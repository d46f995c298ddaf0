package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// NotificationConfig is the read-only notification policy shared by the
// quality monitor and the daily report.  Fields are unexported so a value
// handed to a job cannot be changed behind its back.
type NotificationConfig struct {
	failRateThreshold float64
	adminEmails       []string
	lookback          time.Duration
}

// NewNotificationConfig copies emails so later changes to the caller's slice
// are not observed.
func NewNotificationConfig(threshold float64, emails []string, lookback time.Duration) NotificationConfig {
	cp := make([]string, 0, len(emails))
	for _, e := range emails {
		if e = strings.TrimSpace(e); e != "" {
			cp = append(cp, e)
		}
	}
	if lookback <= 0 {
		lookback = time.Hour
	}
	return NotificationConfig{failRateThreshold: threshold, adminEmails: cp, lookback: lookback}
}

// FailRateThreshold is the percentage above which a bucket is a quality issue.
func (n NotificationConfig) FailRateThreshold() float64 { return n.failRateThreshold }

// AdminEmails returns a copy of the report recipients.
func (n NotificationConfig) AdminEmails() []string {
	return append([]string(nil), n.adminEmails...)
}

// Lookback is the window the hourly detection scans, ending at run time.
func (n NotificationConfig) Lookback() time.Duration { return n.lookback }

type notificationFile struct {
	FailRateThreshold *float64 `yaml:"failRateThreshold"`
	AdminEmails       []string `yaml:"adminEmails"`
	Lookback          string   `yaml:"lookback"`
}

type notificationRules struct {
	Threshold float64  `validate:"gte=0,lte=100"`
	Emails    []string `validate:"dive,email"`
}

// LoadNotificationConfig builds the policy from defaults, then the optional
// YAML file named by NOTIFY_CONFIG_FILE, then environment variables.
func LoadNotificationConfig() (NotificationConfig, error) {
	threshold := 5.0
	var emails []string
	lookback := time.Hour

	if path := os.Getenv("NOTIFY_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return NotificationConfig{}, fmt.Errorf("read notification config: %w", err)
		}
		var f notificationFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return NotificationConfig{}, fmt.Errorf("parse notification config: %w", err)
		}
		if f.FailRateThreshold != nil {
			threshold = *f.FailRateThreshold
		}
		if len(f.AdminEmails) > 0 {
			emails = f.AdminEmails
		}
		if f.Lookback != "" {
			d, err := time.ParseDuration(f.Lookback)
			if err != nil {
				return NotificationConfig{}, fmt.Errorf("parse notification config: lookback: %w", err)
			}
			lookback = d
		}
	}

	threshold = envFloat("NOTIFY_FAIL_RATE_THRESHOLD", threshold)
	if list := envList("NOTIFY_ADMIN_EMAILS"); len(list) > 0 {
		emails = list
	}
	lookback = envDur("NOTIFY_LOOKBACK", lookback)

	n := NewNotificationConfig(threshold, emails, lookback)
	if err := validator.New().Struct(notificationRules{Threshold: n.failRateThreshold, Emails: n.adminEmails}); err != nil {
		return NotificationConfig{}, fmt.Errorf("invalid notification config: %w", err)
	}
	return n, nil
}
