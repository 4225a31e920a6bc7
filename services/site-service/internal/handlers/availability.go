package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ateliernova/site-backend/services/site-service/internal/availability"
	"github.com/redis/go-redis/v9"
)

const (
	defaultAvailabilityDays = 5
	maxAvailabilityDays     = 5
	availabilityCacheTTL    = 60 * time.Second
)

type AvailabilityHandler struct {
	planner *availability.Planner
	rdb     *redis.Client
	logger  *slog.Logger
}

func NewAvailabilityHandler(planner *availability.Planner, rdb *redis.Client, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{planner: planner, rdb: rdb, logger: logger}
}

type availabilityResponse struct {
	DailyAvailabilities []availability.DayAvailability `json:"dailyAvailabilities"`
}

func (h *AvailabilityHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	days := defaultAvailabilityDays
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAvailabilityDays {
			http.Error(w, fmt.Sprintf("days must be between 1 and %d", maxAvailabilityDays), http.StatusBadRequest)
			return
		}
		days = n
	}

	ctx := r.Context()
	cacheKey := fmt.Sprintf("availability:%d", days)
	if h.rdb != nil {
		if cached, err := h.rdb.Get(ctx, cacheKey).Bytes(); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			return
		}
	}

	dailies, err := h.planner.Upcoming(ctx, days, time.Now().UTC())
	if err != nil {
		h.logger.Error("availability computation failed", "err", err)
		http.Error(w, "availability temporarily unavailable", http.StatusBadGateway)
		return
	}

	body, err := json.Marshal(availabilityResponse{DailyAvailabilities: dailies})
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}

	if h.rdb != nil {
		if err := h.rdb.Set(ctx, cacheKey, body, availabilityCacheTTL).Err(); err != nil {
			h.logger.Warn("availability cache write failed", "err", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
