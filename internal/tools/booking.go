package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// BookingClient talks to the scheduling backend: branch availability,
// appointment creation, and support tickets. It satisfies the dialogue
// machine's BookingAPI.
type BookingClient struct {
	baseURL string
	http    *http.Client
}

func NewBookingClient(baseURL string, timeout time.Duration) *BookingClient {
	return &BookingClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *BookingClient) FetchAvailability(ctx context.Context, dateISO, location string) ([]string, error) {
	q := url.Values{}
	q.Set("date", dateISO)
	q.Set("location", location)
	res, err := getJSON(ctx, c.http, c.baseURL+"/availability?"+q.Encode())
	if err != nil {
		return nil, err
	}
	raw, ok := res["slots"].([]any)
	if !ok {
		return nil, fmt.Errorf("availability response missing slots")
	}
	slots := make([]string, 0, len(raw))
	for _, s := range raw {
		if str, ok := s.(string); ok {
			slots = append(slots, str)
		}
	}
	return slots, nil
}

func (c *BookingClient) CreateAppointment(ctx context.Context, name, contact, datetime, location, notes string) (string, error) {
	res, err := postJSON(ctx, c.http, c.baseURL+"/appointments", map[string]any{
		"name":     name,
		"contact":  contact,
		"datetime": datetime,
		"location": location,
		"notes":    notes,
	})
	if err != nil {
		return "", err
	}
	return resultID(res)
}

func (c *BookingClient) CreateTicket(ctx context.Context, name, contact, subject, message string) (string, error) {
	res, err := postJSON(ctx, c.http, c.baseURL+"/tickets", map[string]any{
		"name":    name,
		"contact": contact,
		"subject": subject,
		"message": message,
	})
	if err != nil {
		return "", err
	}
	return resultID(res)
}

func resultID(res map[string]any) (string, error) {
	if ok, present := res["ok"].(bool); present && !ok {
		return "", fmt.Errorf("backend rejected the request")
	}
	id, ok := res["id"].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("backend response missing id")
	}
	return id, nil
}
