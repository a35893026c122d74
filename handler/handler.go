package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"site-creator/internal/domain"
	"site-creator/internal/sites"
)

const correlationHeader = "X-Correlation-Id"

type SiteService interface {
	Create(ctx context.Context, in sites.CreateInput) (sites.CreateOutput, error)
	List(ctx context.Context, sessionToken string) ([]domain.Project, error)
}

type createRequest struct {
	UserSession string `json:"user_session"`
	ProjectName string `json:"project_name"`
	Description string `json:"description"`
}

type createResponse struct {
	ProjectID int64  `json:"project_id"`
	ID        int64  `json:"id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	URL       string `json:"url"`
}

type projectResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	URL         string  `json:"url"`
	CreatedAt   *string `json:"created_at"`
}

type listResponse struct {
	Projects []projectResponse `json:"projects"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler serves both provisioning endpoints from one function, dispatching
// on the HTTP method.
type Handler struct {
	svc    SiteService
	logger *slog.Logger
}

func NewHandler(svc SiteService, logger *slog.Logger) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("handler: site service must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}, nil
}

func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(req.Headers)
	logger := h.logger.With("correlation_id", corrID, "method", req.HTTPMethod)

	var resp events.APIGatewayProxyResponse
	switch req.HTTPMethod {
	case http.MethodOptions:
		resp = preflight()
	case http.MethodPost:
		resp = h.create(ctx, logger, req)
	case http.MethodGet:
		resp = h.list(ctx, logger, req)
	default:
		resp = jsonResponse(http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
	}
	resp.Headers[correlationHeader] = corrID
	return resp, nil
}

func (h *Handler) create(ctx context.Context, logger *slog.Logger, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	body, err := requestBody(req)
	if err != nil {
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	var in createRequest
	if strings.TrimSpace(body) != "" {
		if err := json.Unmarshal([]byte(body), &in); err != nil {
			return jsonResponse(http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		}
	}

	out, err := h.svc.Create(ctx, sites.CreateInput{
		Session:     in.UserSession,
		ProjectName: in.ProjectName,
		Description: in.Description,
	})
	if err != nil {
		return errorResult(logger, "create", err)
	}
	return jsonResponse(http.StatusOK, createResponse{
		ProjectID: out.ProjectID,
		ID:        out.ProjectID,
		Status:    string(out.Status),
		Message:   out.Message,
		URL:       out.URL,
	})
}

func (h *Handler) list(ctx context.Context, logger *slog.Logger, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	projects, err := h.svc.List(ctx, req.QueryStringParameters["user_session"])
	if err != nil {
		return errorResult(logger, "list", err)
	}
	out := listResponse{Projects: make([]projectResponse, 0, len(projects))}
	for _, p := range projects {
		pr := projectResponse{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Status:      string(p.Status),
			URL:         p.URL,
		}
		if p.CreatedAt != nil {
			ts := p.CreatedAt.UTC().Format(time.RFC3339Nano)
			pr.CreatedAt = &ts
		}
		out.Projects = append(out.Projects, pr)
	}
	return jsonResponse(http.StatusOK, out)
}

func errorResult(logger *slog.Logger, op string, err error) events.APIGatewayProxyResponse {
	var sitesErr *sites.Error
	if errors.As(err, &sitesErr) {
		if sitesErr.Code == sites.ErrorInvalidInput {
			logger.Info("request rejected", "op", op, "reason", sitesErr.Reason)
			return jsonResponse(http.StatusBadRequest, errorResponse{Error: sitesErr.Message})
		}
		logger.Error("request failed", "op", op, "reason", sitesErr.Reason, "err", err)
		return jsonResponse(http.StatusInternalServerError, errorResponse{Error: sitesErr.Message})
	}
	logger.Error("request failed", "op", op, "err", err)
	return jsonResponse(http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

func requestBody(req events.APIGatewayProxyRequest) (string, error) {
	if !req.IsBase64Encoded {
		return req.Body, nil
	}
	raw, err := base64.StdEncoding.DecodeString(req.Body)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func preflight() events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"Access-Control-Allow-Origin":  "*",
			"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
			"Access-Control-Allow-Headers": "Content-Type, X-Session-Id",
			"Access-Control-Max-Age":       "86400",
		},
	}
}

func jsonResponse(status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"encode response"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":                "application/json",
			"Access-Control-Allow-Origin": "*",
		},
		Body: string(body),
	}
}

// correlationID reuses the caller's id when present. API Gateway does not
// normalize header case.
func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return uuid.NewString()
}
