package server

import (
	"encoding/json"
	"net/http"

	"github.com/copyleftdev/verdant/internal/errors"
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      interface{}       `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params,omitempty"`
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, codeParseError, "Parse error", nil)
		return
	}

	// Validate JSON-RPC 2.0 request
	if request.JSONRPC != "2.0" {
		s.respondWithError(w, codeInvalidRequest, "Invalid Request", request.ID)
		return
	}

	// Route to appropriate handler
	var result interface{}
	var err error

	switch request.Method {
	case "route.optimize":
		result, err = s.handleRouteOptimize(request.Params)
	case "segmentation.cluster":
		result, err = s.handleSegmentationCluster(request.Params)
	case "segmentation.centroids":
		result, err = s.handleSegmentationCentroids(request.Params)
	case "segmentation.reset":
		result, err = s.handleSegmentationReset(request.Params)
	default:
		s.respondWithError(w, codeMethodNotFound, "Method not found", request.ID)
		return
	}

	if err != nil {
		if errors.StatusCode(err) == http.StatusBadRequest {
			s.respondWithError(w, codeInvalidParams, err.Error(), request.ID)
		} else {
			s.respondWithError(w, codeServerError, err.Error(), request.ID)
		}
		return
	}

	// Send successful response
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	})
}

// decodeParams decodes the first positional parameter into v. Missing
// params leave v untouched.
func decodeParams(method string, params []json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params[0], v); err != nil {
		return errors.Wrap(err, "invalid parameter format, expected object").
			WithOperation(method).WithStatus(http.StatusBadRequest)
	}
	return nil
}

// handleRouteOptimize handles the route.optimize JSON-RPC method.
// Expected parameters: {"stops": 12}
// Returns: the route document
func (s *Server) handleRouteOptimize(params []json.RawMessage) (interface{}, error) {
	p := struct {
		Stops *int `json:"stops"`
	}{}
	if err := decodeParams("route.optimize", params, &p); err != nil {
		return nil, err
	}

	stops := s.cfg.Routing.DefaultStops
	if p.Stops != nil {
		stops = *p.Stops
	}
	return s.route(stops)
}

// handleSegmentationCluster handles the segmentation.cluster JSON-RPC method.
// Expected parameters: {"tenant": "acme", "customers": [{"eco_score": 40, "wallet_balance": 120}]}
// Returns: the segmentation document
func (s *Server) handleSegmentationCluster(params []json.RawMessage) (interface{}, error) {
	var p struct {
		Tenant    string     `json:"tenant"`
		Customers []Customer `json:"customers"`
	}
	if err := decodeParams("segmentation.cluster", params, &p); err != nil {
		return nil, err
	}
	return s.segment(tenantName(p.Tenant), p.Customers), nil
}

// handleSegmentationCentroids handles the segmentation.centroids JSON-RPC method.
// Expected parameters: {"tenant": "acme"}
func (s *Server) handleSegmentationCentroids(params []json.RawMessage) (interface{}, error) {
	var p struct {
		Tenant string `json:"tenant"`
	}
	if err := decodeParams("segmentation.centroids", params, &p); err != nil {
		return nil, err
	}
	tenant := tenantName(p.Tenant)
	return map[string]interface{}{
		"tenant":    tenant,
		"centroids": s.centroids(tenant),
	}, nil
}

// handleSegmentationReset handles the segmentation.reset JSON-RPC method.
// Expected parameters: {"tenant": "acme"}
func (s *Server) handleSegmentationReset(params []json.RawMessage) (interface{}, error) {
	var p struct {
		Tenant string `json:"tenant"`
	}
	if err := decodeParams("segmentation.reset", params, &p); err != nil {
		return nil, err
	}
	tenant := tenantName(p.Tenant)
	s.engine.ResetTenant(tenant)
	s.logger.Info("Centroids reset", map[string]interface{}{
		"tenant": tenant,
	})
	return map[string]interface{}{
		"tenant": tenant,
		"status": "reset",
	}, nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Error("Request error", map[string]interface{}{
		"status":  code,
		"message": message,
	})

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	}

	s.writeJSON(w, http.StatusOK, response)
}
