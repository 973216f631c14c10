// Package ingress deduplicates inbound webhook deliveries into the Event
// table, computing a stable fingerprint so at-least-once wire delivery
// collapses to exactly-once storage.
package ingress

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/geocoder89/whatsflow/internal/domain/event"
	"github.com/geocoder89/whatsflow/internal/repo/postgres"
)

var deniedHeaders = map[string]struct{}{
	"authorization": {},
	"cookie":        {},
}

var ErrBadSecret = errors.New("ingress: webhook secret mismatch")

type EventsCreator interface {
	Create(ctx context.Context, req event.CreateRequest) (event.Event, error)
}

type Deduplicator struct {
	events EventsCreator
	secret string
}

func New(events EventsCreator, secret string) *Deduplicator {
	return &Deduplicator{events: events, secret: secret}
}

// altegioPayload is the subset of fields the fingerprint algorithm inspects.
type altegioPayload struct {
	CompanyID  *int64          `json:"company_id"`
	Resource   *string         `json:"resource"`
	ResourceID *int64          `json:"resource_id"`
	Status     *string         `json:"status"`
	Data       json.RawMessage `json:"data"`
}

type altegioData struct {
	LastChangeDate *string `json:"last_change_date"`
}

// IngestAltegio validates the query secret and dedupe-inserts the Altegio
// webhook payload. Returns nil on both a fresh insert and a duplicate.
func (d *Deduplicator) IngestAltegio(ctx context.Context, rawPayload []byte, query map[string]string, headers http.Header) error {
	if query["secret"] != d.secret {
		return ErrBadSecret
	}

	var p altegioPayload
	if err := json.Unmarshal(rawPayload, &p); err != nil {
		return fmt.Errorf("ingress: invalid payload: %w", err)
	}

	fingerprint := altegioFingerprint(p, rawPayload, d.secret)

	req := event.CreateRequest{
		Fingerprint: fingerprint,
		CompanyID:   p.CompanyID,
		Resource:    p.Resource,
		ResourceID:  p.ResourceID,
		RawQuery:    mustMarshal(query),
		RawHeaders:  mustMarshal(safeHeaders(headers)),
		RawPayload:  rawPayload,
	}
	if p.Status != nil {
		t := event.Transition(*p.Status)
		req.Transition = &t
	}

	_, err := d.events.Create(ctx, req)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil
		}
		return err
	}
	return nil
}

// IngestWhatsApp dedup-inserts a WhatsApp-channel webhook delivery, keyed by
// a fingerprint over the canonical payload rather than business fields.
func (d *Deduplicator) IngestWhatsApp(ctx context.Context, rawPayload []byte, query map[string]string, headers http.Header) error {
	var v any
	if err := json.Unmarshal(rawPayload, &v); err != nil {
		return fmt.Errorf("ingress: invalid payload: %w", err)
	}

	canon, err := canonicalJSON(v)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(canon)
	fingerprint := "wa:" + hex.EncodeToString(sum[:])

	req := event.CreateRequest{
		Fingerprint: fingerprint,
		RawQuery:    mustMarshal(query),
		RawHeaders:  mustMarshal(safeHeaders(headers)),
		RawPayload:  rawPayload,
	}

	_, err = d.events.Create(ctx, req)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil
		}
		return err
	}
	return nil
}

func altegioFingerprint(p altegioPayload, rawPayload []byte, secret string) string {
	if p.CompanyID != nil && p.Resource != nil && p.ResourceID != nil && p.Status != nil {
		var d altegioData
		if len(p.Data) > 0 {
			_ = json.Unmarshal(p.Data, &d)
		}
		lastChange := ""
		if d.LastChangeDate != nil {
			lastChange = *d.LastChangeDate
		}
		base := fmt.Sprintf("%d:%s:%d:%s:%s:%s", *p.CompanyID, *p.Resource, *p.ResourceID, *p.Status, lastChange, secret)
		return sha256Hex(base)
	}

	canon, err := canonicalJSON(json.RawMessage(rawPayload))
	if err != nil {
		canon = []byte("{}")
	}
	return sha256Hex("fallback:" + string(canon))
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func safeHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if _, denied := deniedHeaders[strings.ToLower(k)]; denied {
			continue
		}
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func mustMarshal(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func mustMarshalRaw(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
