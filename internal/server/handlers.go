package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/whitemask/maskd/internal/cache"
	"github.com/whitemask/maskd/internal/logger"
	"github.com/whitemask/maskd/internal/mask"
	"github.com/whitemask/maskd/internal/tenant"
	"github.com/whitemask/maskd/internal/websocket"
)

// handleMask masks the submitted lines against the tenant's tables.
func (s *Server) handleMask(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt64(&s.totalRequests, 1)
	start := time.Now()
	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)

	var req MaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TenantID == "" {
		writeError(w, http.StatusBadRequest, "tenantID is required")
		return
	}

	tables, err := s.tenants.Tables(req.TenantID)
	if err != nil {
		s.writeTenantError(w, log, err)
		return
	}

	templates, terrs := mask.CompileTemplates(req.Templates)
	resp := MaskResponse{
		Masked: make([]string, len(req.Unmasked)),
		Errors: terrs,
	}
	opts := &mask.LineOptions{Templates: templates, MaskNumbers: req.MaskNumbers}
	masker := mask.New(tables, s.recorder, log.Logger)

	// Request-scoped templates and overrides make lines non-cacheable.
	cacheable := s.cache != nil && len(req.Templates) == 0 && req.MaskNumbers == nil
	cacheHits := 0

	for i, linePtr := range req.Unmasked {
		if linePtr == nil {
			resp.Masked[i] = ""
			continue
		}
		line := *linePtr

		if cacheable {
			if cached, _ := s.cache.Get(r.Context(), req.TenantID, line); cached != nil {
				resp.Masked[i] = cached.Masked
				resp.Counts.Add(cached.Counts)
				cacheHits++
				continue
			}
		}

		masked, counts := masker.MaskLine(line, opts)
		resp.Masked[i] = masked
		resp.Counts.Add(counts)

		if cacheable {
			if err := s.cache.Store(r.Context(), req.TenantID, line, &cache.CachedLine{
				Masked: masked,
				Counts: counts,
			}); err != nil {
				log.Warn("Failed to cache masked line", zap.Error(err))
			}
		}
	}
	resp.MaskedTotal = resp.Counts.Masked()

	duration := time.Since(start)
	log.Info("Masking completed",
		zap.String("tenant", req.TenantID),
		zap.Int("lines", len(req.Unmasked)),
		zap.Int("cache_hits", cacheHits),
		zap.Int64("words", resp.Counts.Words),
		zap.Int64("masked", resp.MaskedTotal),
		zap.Duration("duration", duration),
	)

	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeMask,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data: websocket.MaskEvent{
			RequestID:    requestID,
			TenantID:     req.TenantID,
			ClientIP:     clientIP(r),
			Lines:        len(req.Unmasked),
			CacheHits:    cacheHits,
			Counts:       resp.Counts,
			ProcessingMS: float64(duration.Nanoseconds()) / 1e6,
		},
	})

	writeJSON(w, http.StatusOK, resp)
}

// handleTemplates updates a tenant's template list.
func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt64(&s.totalRequests, 1)
	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)

	var req TemplatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TenantID == "" {
		writeError(w, http.StatusBadRequest, "tenantID is required")
		return
	}

	result, err := s.tenants.UpdateTemplates(req.TenantID, req.Updates, req.Removals)
	if err != nil {
		s.writeTenantError(w, log, err)
		return
	}

	// Cached lines were masked under the old template list.
	if s.cache != nil {
		if err := s.cache.ClearTenant(r.Context(), req.TenantID); err != nil {
			log.Warn("Failed to clear tenant cache", zap.Error(err))
		}
	}

	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeTemplateUpdate,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data: websocket.TemplateUpdateEvent{
			TenantID: req.TenantID,
			Updated:  len(result.Updated),
			Removed:  len(result.Removed),
			Errors:   len(result.Errors),
		},
	})

	writeJSON(w, http.StatusOK, result)
}

// handleBlacklist exports masked-word frequencies, largest first. With
// ?format=text the response is the blacklist.txt line format; ?limit=N
// bounds the JSON entry count (default 100). When blacklist persistence is
// configured the JSON entries come from the database, which survives
// restarts; the text export always reflects this process's recorder.
func (s *Server) handleBlacklist(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt64(&s.totalRequests, 1)

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, s.recorder.Export())
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	if s.blacklistStore != nil {
		entries, err := s.blacklistStore.Top(r.Context(), limit)
		if err == nil {
			writeJSON(w, http.StatusOK, entries)
			return
		}
		s.logger.Warn("Blacklist query failed, serving in-memory counts", zap.Error(err))
	}

	entries := s.recorder.Snapshot()
	if len(entries) > limit {
		entries = entries[:limit]
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	ids, _ := s.tenants.IDs()
	info := map[string]interface{}{
		"name":           "maskd",
		"version":        version,
		"uptime":         time.Since(s.startTime).Round(time.Second).String(),
		"tenants":        len(ids),
		"total_requests": atomic.LoadInt64(&s.totalRequests),
		"cache_enabled":  s.cache != nil,
	}
	if s.cache != nil {
		if stats, err := s.cache.GetStats(r.Context()); err == nil {
			info["cache"] = stats
		} else {
			s.logger.Warn("Cache stats unavailable", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, info)
}

// handleWebSocket handles WebSocket connections for the dashboard
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.wsHub.HandleWebSocket(w, r)
}

func (s *Server) writeTenantError(w http.ResponseWriter, log *logger.Logger, err error) {
	switch {
	case errors.Is(err, tenant.ErrUnknownTenant):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, tenant.ErrMissingResource):
		log.Warn("Tenant resources incomplete", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		log.Warn("Tenant resolution failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "tenant resolution failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
