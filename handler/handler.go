package handler

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"chat-widget/internal/observability"
	"chat-widget/internal/usecase"
	"chat-widget/internal/widget"
)

const (
	headerCorrelationID = "X-Correlation-Id"
	pageTitle           = "L'Oréal Smart Product Advisor"
	maxBodyBytes        = 64 << 10
)

//go:embed page.html
var pageHTML string

var pageTemplate = template.Must(template.New("page").Parse(pageHTML))

// ChatUseCase is the subset of usecase.ChatService the handler depends on.
type ChatUseCase interface {
	Open(ctx context.Context) (usecase.OpenOutput, error)
	Submit(ctx context.Context, in usecase.SubmitInput) (usecase.SubmitOutput, error)
}

type Handler struct {
	chat ChatUseCase
}

type chatRequest struct {
	PageID string `json:"pageId"`
	Text   string `json:"text"`
}

type nodeResponse struct {
	ID    int         `json:"id"`
	Role  string      `json:"role"`
	Kind  widget.Kind `json:"kind"`
	Class string      `json:"class"`
	HTML  string      `json:"html"`
}

type chatResponse struct {
	PageID     string         `json:"pageId"`
	Status     widget.Status  `json:"status"`
	Nodes      []nodeResponse `json:"nodes"`
	ClearInput bool           `json:"clearInput"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type pageNode struct {
	Class string
	HTML  template.HTML
}

type pageData struct {
	Title       string
	PageID      string
	Greeting    []pageNode
	LoadingText string
	ErrorPrefix string
}

func NewHandler(chat ChatUseCase) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	return &Handler{chat: chat}, nil
}

// Handle serves the widget page and chat turns behind API Gateway.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, headerCorrelationID)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	ctx = observability.WithCorrelationID(ctx, correlationID)
	log := observability.FromContext(ctx)

	var resp events.APIGatewayProxyResponse
	switch route(req.Path) {
	case "/":
		resp = h.handlePage(ctx, req)
	case "/chat":
		resp = h.handleChat(ctx, req)
	default:
		resp = jsonResponse(http.StatusNotFound, errorResponse{Error: "NOT_FOUND", Message: "Not found."})
	}

	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers[headerCorrelationID] = correlationID
	for k, v := range corsHeaders() {
		resp.Headers[k] = v
	}
	log.Info("request handled", "method", req.HTTPMethod, "path", req.Path, "status", resp.StatusCode)
	return resp, nil
}

func (h *Handler) handlePage(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	switch req.HTTPMethod {
	case http.MethodGet:
	case http.MethodOptions:
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}
	default:
		return methodNotAllowed()
	}

	out, err := h.chat.Open(ctx)
	if err != nil {
		return errorToResponse(ctx, err)
	}

	data := pageData{
		Title:       pageTitle,
		PageID:      out.PageID,
		LoadingText: widget.DefaultLoadingText,
		ErrorPrefix: widget.DefaultErrorPrefix,
	}
	for _, n := range out.Greeting {
		// n.HTML is produced by widget.RenderText
		data.Greeting = append(data.Greeting, pageNode{Class: n.Class(), HTML: template.HTML(n.HTML)})
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		observability.FromContext(ctx).Error("render page failed", "err", err)
		return jsonResponse(http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal), Message: "Something went wrong."})
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "text/html; charset=utf-8"},
		Body:       buf.String(),
	}
}

func (h *Handler) handleChat(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	switch req.HTTPMethod {
	case http.MethodPost:
	case http.MethodOptions:
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}
	default:
		return methodNotAllowed()
	}

	if len(req.Body) > maxBodyBytes {
		return jsonResponse(http.StatusRequestEntityTooLarge, errorResponse{Error: string(usecase.ErrorInvalidInput), Message: "Message is too large."})
	}
	var body chatRequest
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Message: "Invalid request body."})
	}

	out, err := h.chat.Submit(ctx, usecase.SubmitInput{PageID: body.PageID, Text: body.Text})
	if err != nil {
		return errorToResponse(ctx, err)
	}

	nodes := make([]nodeResponse, 0, len(out.Nodes))
	for _, n := range out.Nodes {
		nodes = append(nodes, nodeResponse{ID: n.ID, Role: n.Role, Kind: n.Kind, Class: n.Class(), HTML: n.HTML})
	}
	return jsonResponse(http.StatusOK, chatResponse{
		PageID:     out.PageID,
		Status:     out.Status,
		Nodes:      nodes,
		ClearInput: out.InputCleared,
	})
}

func errorToResponse(ctx context.Context, err error) events.APIGatewayProxyResponse {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		observability.FromContext(ctx).Error("unexpected error", "err", err)
		return jsonResponse(http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal), Message: "Something went wrong."})
	}

	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: string(ucErr.Code), Message: "Invalid message."})
	case usecase.ErrorTurnInFlight:
		return jsonResponse(http.StatusConflict, errorResponse{Error: string(ucErr.Code), Message: "Please wait for the previous reply."})
	default:
		observability.FromContext(ctx).Error("chat request failed", "code", ucErr.Code, "reason", ucErr.Reason, "err", ucErr.Err)
		return jsonResponse(http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal), Message: "Something went wrong."})
	}
}

func jsonResponse(status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR","message":"Something went wrong."}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

func methodNotAllowed() events.APIGatewayProxyResponse {
	return jsonResponse(http.StatusMethodNotAllowed, errorResponse{Error: "METHOD_NOT_ALLOWED", Message: "Method not allowed."})
}

func corsHeaders() map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type, X-Correlation-Id",
	}
}

// route normalizes surrounding slashes so "/chat/" and "chat" match "/chat".
func route(path string) string {
	path = "/" + strings.Trim(path, "/")
	if path == "/index.html" {
		return "/"
	}
	return path
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
