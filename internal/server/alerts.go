package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"tendertrack/internal/access"
	"tendertrack/internal/deadline"
	"tendertrack/internal/engine"
)

// alertPrincipal is the internal identity the dispatcher scans with.
func alertPrincipal() *access.Principal {
	return &access.Principal{
		UserID:      "alerts",
		Role:        access.RoleManager,
		Permissions: []access.Permission{access.PermReportsView},
	}
}

const (
	defaultAlertInterval = 60 * time.Second
	defaultAlertTimeout  = 5 * time.Second
)

// alertDispatcher periodically scans active projects and tenders and posts
// overdue or at-risk items to the configured webhook. An item is re-notified
// only when its classification changes, not on every tick.
type alertDispatcher struct {
	engine engine.Engine
	url    string
	client *http.Client
	mu     sync.Mutex
	sent   map[string]deadline.Classification
}

// StartAlertDispatcher launches the background notifier when a webhook URL is
// configured. It is a no-op otherwise.
func StartAlertDispatcher(e engine.Engine) {
	if e.Config == nil || strings.TrimSpace(e.Config.Alerts.WebhookURL) == "" {
		return
	}
	interval := defaultAlertInterval
	if e.Config.Alerts.IntervalSeconds > 0 {
		interval = time.Duration(e.Config.Alerts.IntervalSeconds) * time.Second
	}
	d := &alertDispatcher{
		engine: e,
		url:    e.Config.Alerts.WebhookURL,
		client: &http.Client{Timeout: defaultAlertTimeout},
		sent:   make(map[string]deadline.Classification),
	}
	go d.run(interval)
}

func (d *alertDispatcher) run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		d.scan()
		<-ticker.C
	}
}

func (d *alertDispatcher) scan() {
	ctx := context.Background()
	rows, err := d.engine.DeadlineReport(ctx, alertPrincipal())
	if err != nil {
		log.Printf("alerts: deadline scan failed: %v", err)
		return
	}
	for _, row := range rows {
		if row.Classification != deadline.Overdue && !row.AtRisk {
			continue
		}
		key := row.EntityKind + ":" + row.EntityID
		d.mu.Lock()
		prev, seen := d.sent[key]
		d.mu.Unlock()
		if seen && prev == row.Classification {
			continue
		}
		if err := d.postAlert(ctx, row); err != nil {
			log.Printf("alerts: deliver to %s failed: %v", d.url, err)
			return
		}
		d.mu.Lock()
		d.sent[key] = row.Classification
		d.mu.Unlock()
	}
}

type alertEvent struct {
	EntityKind     string                  `json:"entity_kind"`
	EntityID       string                  `json:"entity_id"`
	Code           string                  `json:"code"`
	Name           string                  `json:"name"`
	Classification deadline.Classification `json:"classification"`
	DaysRemaining  int                     `json:"days_remaining"`
	DaysOverdue    int                     `json:"days_overdue"`
	AtRisk         bool                    `json:"at_risk"`
	TS             string                  `json:"ts"`
}

func (d *alertDispatcher) postAlert(ctx context.Context, row engine.DeadlineRow) error {
	body := alertEvent{
		EntityKind:     row.EntityKind,
		EntityID:       row.EntityID,
		Code:           row.Code,
		Name:           row.Name,
		Classification: row.Classification,
		DaysRemaining:  row.DaysRemaining,
		DaysOverdue:    row.DaysOverdue,
		AtRisk:         row.AtRisk,
		TS:             d.engine.Today().Format(time.RFC3339),
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tendertrack-Alert", string(row.Classification))
	req.Header.Set("X-Tendertrack-Entity", row.EntityKind+"/"+row.EntityID)
	res, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}
