package tools

import (
	"context"
	"time"

	"github.com/sahmacademy/sahmbot/internal/config"
	"github.com/sahmacademy/sahmbot/internal/llm"
)

const (
	ToolGetPrice          = "get_price"
	ToolGetMarketAnalysis = "get_market_analysis"
	ToolGetCourses        = "get_courses"
)

// MaxCourseListing caps how many courses one reply may carry.
const MaxCourseListing = config.DefaultCourseLimit

// Clients bundles the tool implementations wired from one services config.
type Clients struct {
	Price    *PriceClient
	Analysis *AnalysisClient
	Courses  *CoursesClient
	Booking  *BookingClient
}

func NewClients(cfg config.ServicesConfig) *Clients {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultServiceTimeout) * time.Second
	}
	return &Clients{
		Price:    NewPriceClient(cfg.PriceURL, timeout),
		Analysis: NewAnalysisClient(cfg.AnalysisURL, timeout),
		Courses:  NewCoursesClient(cfg.CoursesURL, timeout),
		Booking:  NewBookingClient(cfg.BookingURL, timeout),
	}
}

// NewRouterFor builds the dispatch table over the clients.
func NewRouterFor(c *Clients) *Router {
	r := NewRouter()
	r.Register(ToolGetPrice, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		symbol, _ := args["symbol"].(string)
		market, _ := args["market"].(string)
		return c.Price.GetPrice(ctx, symbol, market)
	})
	r.Register(ToolGetMarketAnalysis, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		symbol, _ := args["symbol"].(string)
		return c.Analysis.GetAnalysis(ctx, symbol)
	})
	r.Register(ToolGetCourses, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		limit := MaxCourseListing
		if v, ok := args["limit"].(float64); ok && v > 0 && int(v) < limit {
			limit = int(v)
		}
		return c.Courses.Result(ctx, limit)
	})
	return r
}

// Defs is the tool schema handed to the model when a turn needs LLM
// planning.
func Defs() []llm.ToolDef {
	return []llm.ToolDef{
		{
			Name:        ToolGetPrice,
			Description: "Get the current price of a trading symbol.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"symbol": map[string]any{"type": "string", "description": "Trading symbol, e.g. BTC, XAU, EURUSD"},
					"market": map[string]any{"type": "string", "enum": []string{"crypto", "forex", "metals", "stocks"}},
				},
				"required": []string{"symbol"},
			},
		},
		{
			Name:        ToolGetMarketAnalysis,
			Description: "Get educational trend notes for a trading symbol.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"symbol": map[string]any{"type": "string"},
				},
				"required": []string{"symbol"},
			},
		},
		{
			Name:        ToolGetCourses,
			Description: "List available trading courses.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"limit": map[string]any{"type": "integer", "description": "Max courses to return"},
				},
			},
		},
	}
}
