package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Course is one catalog entry. Level drives the listing order.
type Course struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Level string  `json:"level"`
	Price float64 `json:"price"`
}

// LevelOrder ranks course levels for listing; unknown levels sort last.
func LevelOrder(level string) int {
	switch level {
	case "beginner":
		return 0
	case "intermediate":
		return 1
	case "advanced":
		return 2
	}
	return 3
}

// CoursesClient fetches the course catalog and keeps a short-lived cache so
// the hourly refresh job and ad-hoc listings don't hammer the catalog
// service.
type CoursesClient struct {
	baseURL string
	http    *http.Client

	mu        sync.Mutex
	cached    []Course
	fetchedAt time.Time
	ttl       time.Duration
}

func NewCoursesClient(baseURL string, timeout time.Duration) *CoursesClient {
	return &CoursesClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		ttl:     time.Hour,
	}
}

// Refresh re-fetches the catalog unconditionally. The cron job calls this.
func (c *CoursesClient) Refresh(ctx context.Context) error {
	res, err := getJSON(ctx, c.http, c.baseURL+"/courses")
	if err != nil {
		return fmt.Errorf("fetch catalog: %w", err)
	}
	courses, ok := DecodeCourses(res)
	if !ok {
		return fmt.Errorf("catalog response missing courses")
	}

	c.mu.Lock()
	c.cached = courses
	c.fetchedAt = time.Now()
	c.mu.Unlock()
	log.Printf("[courses] catalog refreshed, %d entries", len(courses))
	return nil
}

// List returns up to limit catalog entries, serving from cache while fresh.
func (c *CoursesClient) List(ctx context.Context, limit int) ([]Course, error) {
	c.mu.Lock()
	fresh := time.Since(c.fetchedAt) < c.ttl && c.cached != nil
	cached := c.cached
	c.mu.Unlock()

	if !fresh {
		if err := c.Refresh(ctx); err != nil {
			return nil, err
		}
		c.mu.Lock()
		cached = c.cached
		c.mu.Unlock()
	}

	if limit > 0 && len(cached) > limit {
		cached = cached[:limit]
	}
	out := make([]Course, len(cached))
	copy(out, cached)
	return out, nil
}

// Result returns the catalog in tool-result shape.
func (c *CoursesClient) Result(ctx context.Context, limit int) (map[string]any, error) {
	courses, err := c.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"ok": true, "courses": courses}, nil
}

// Purchase is one purchase record from the academy platform.
type Purchase struct {
	CourseID string `json:"courseId"`
	Status   string `json:"status"`
}

// Purchases returns the user's purchase records. Not cached: purchase state
// must be current when it decides what to hide from a listing.
func (c *CoursesClient) Purchases(ctx context.Context, userID string) ([]Purchase, error) {
	q := url.Values{}
	q.Set("userId", userID)
	res, err := getJSON(ctx, c.http, c.baseURL+"/purchases?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("fetch purchases: %w", err)
	}
	data, err := json.Marshal(res["purchases"])
	if err != nil {
		return nil, err
	}
	var out []Purchase
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode purchases: %w", err)
	}
	return out, nil
}

// DecodeCourses reads the courses array out of a tool result map.
func DecodeCourses(res map[string]any) ([]Course, bool) {
	raw, ok := res["courses"]
	if !ok {
		return nil, false
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, false
	}
	var courses []Course
	if err := json.Unmarshal(data, &courses); err != nil {
		return nil, false
	}
	return courses, true
}

