package vendors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	"github.com/target/bgsms/internal/domain/model"
)

const (
	maxResponseBodyBytes = 64 * 1024
	defaultHTTPTimeout   = 30 * time.Second

	// ExceptionCodeHTTP marks transport failures talking to the gateway.
	ExceptionCodeHTTP = "HTTP"
	// ExceptionCodeVendor marks a gateway response that did not satisfy success_path.
	ExceptionCodeVendor = "VENDOR"
)

// JMESPathEvaluator abstracts JMESPath operations for testability.
type JMESPathEvaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

type jmespathLibEvaluator struct{}

func (jmespathLibEvaluator) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (jmespathLibEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// GatewayConfig is the from_json shape understood by the http_gateway capability.
//
//	{
//	  "url": "https://sms.example.com/send",
//	  "method": "POST",
//	  "format": "form",
//	  "params": {"username": "u", "password": "p"},
//	  "headers": {"X-Api-Key": "k"},
//	  "to_param": "to", "body_param": "message", "mask_param": "mask",
//	  "success_path": "status == 'OK'",
//	  "code_path": "error.code", "message_path": "error.text",
//	  "balance_url": "https://sms.example.com/balance", "balance_path": "data.credits"
//	}
type GatewayConfig struct {
	URL         string         `json:"url"`
	Method      string         `json:"method"`
	Format      string         `json:"format"`
	Params      map[string]any `json:"params"`
	Headers     map[string]any `json:"headers"`
	ToParam     string         `json:"to_param"`
	BodyParam   string         `json:"body_param"`
	MaskParam   string         `json:"mask_param"`
	SuccessPath string         `json:"success_path"`
	CodePath    string         `json:"code_path"`
	MessagePath string         `json:"message_path"`

	BalanceURL    string `json:"balance_url"`
	BalanceMethod string `json:"balance_method"`
	BalancePath   string `json:"balance_path"`
}

// ParseGatewayConfig decodes credentials into a GatewayConfig and applies defaults.
func ParseGatewayConfig(creds model.Credentials) (GatewayConfig, error) {
	var cfg GatewayConfig
	raw, err := json.Marshal(creds)
	if err != nil {
		return cfg, fmt.Errorf("encode credentials: %w", err)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("decode gateway config: %w", err)
	}
	cfg.Method = strings.ToUpper(strings.TrimSpace(cfg.Method))
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}
	cfg.BalanceMethod = strings.ToUpper(strings.TrimSpace(cfg.BalanceMethod))
	if cfg.BalanceMethod == "" {
		cfg.BalanceMethod = http.MethodGet
	}
	cfg.Format = strings.ToLower(strings.TrimSpace(cfg.Format))
	if cfg.Format == "" {
		cfg.Format = "form"
	}
	if cfg.ToParam == "" {
		cfg.ToParam = "to"
	}
	if cfg.BodyParam == "" {
		cfg.BodyParam = "message"
	}
	if cfg.MaskParam == "" {
		cfg.MaskParam = "mask"
	}
	return cfg, nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %q", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("invalid URL: missing host")
	}
	return nil
}

// HTTPGatewayOptions groups dependencies for HTTPGateway.
type HTTPGatewayOptions struct {
	Client    *http.Client
	Evaluator JMESPathEvaluator
	Logger    *slog.Logger
}

// HTTPGateway sends messages to a generic HTTP SMS gateway described by from_json.
type HTTPGateway struct {
	client *http.Client
	jems   JMESPathEvaluator
	logger *slog.Logger
}

// NewHTTPGateway constructs an HTTPGateway.
func NewHTTPGateway(opts HTTPGatewayOptions) *HTTPGateway {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	jems := opts.Evaluator
	if jems == nil {
		jems = jmespathLibEvaluator{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPGateway{client: client, jems: jems, logger: logger.With("component", "vendor_http_gateway")}
}

// Send delivers one message. Transport, HTTP status and vendor-level failures
// are reported as Not Sent outcomes; an error means from_json is unusable.
func (g *HTTPGateway) Send(ctx context.Context, req model.SendRequest) (model.SendOutcome, error) {
	cfg, err := ParseGatewayConfig(req.Credentials)
	if err != nil {
		return model.SendOutcome{}, err
	}
	if err := validateURL(cfg.URL); err != nil {
		return model.SendOutcome{}, err
	}
	for _, expr := range []string{cfg.SuccessPath, cfg.CodePath, cfg.MessagePath} {
		if err := g.jems.Validate(expr); err != nil {
			return model.SendOutcome{}, fmt.Errorf("invalid JMESPath %q: %w", expr, err)
		}
	}

	params := make(map[string]any, len(cfg.Params)+3)
	for k, v := range cfg.Params {
		params[k] = v
	}
	params[cfg.ToParam] = req.To
	params[cfg.BodyParam] = req.Body
	if req.Mask != "" {
		params[cfg.MaskParam] = req.Mask
	}

	httpReq, err := buildRequest(ctx, cfg.Method, cfg.URL, cfg.Format, params)
	if err != nil {
		return model.SendOutcome{}, err
	}
	applyHeaders(httpReq, cfg.Headers)

	status, body, err := g.do(httpReq)
	if err != nil {
		g.logger.WarnContext(ctx, "gateway request failed", "vendor", req.Vendor, "error", err)
		return model.NotSent(ExceptionCodeHTTP, err.Error()), nil
	}
	if status < 200 || status > 299 {
		out := model.NotSent(strconv.Itoa(status), http.StatusText(status))
		out.ResponseJSON = body
		return out, nil
	}
	if strings.TrimSpace(cfg.SuccessPath) == "" {
		return model.SendOutcome{Status: model.SendStatusSent, ResponseJSON: body}, nil
	}

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		out := model.NotSent(ExceptionCodeVendor, "gateway response is not JSON")
		out.ResponseJSON = body
		return out, nil
	}
	ok, err := g.jems.Evaluate(cfg.SuccessPath, doc)
	if err != nil {
		return model.SendOutcome{}, fmt.Errorf("evaluate success_path: %w", err)
	}
	if truthy(ok) {
		return model.SendOutcome{Status: model.SendStatusSent, ResponseJSON: body}, nil
	}

	code := g.extract(cfg.CodePath, doc)
	if code == "" {
		code = ExceptionCodeVendor
	}
	msg := g.extract(cfg.MessagePath, doc)
	if msg == "" {
		msg = "gateway rejected the message"
	}
	out := model.NotSent(code, msg)
	out.ResponseJSON = body
	return out, nil
}

// GetBalance queries balance_url with the configured params and extracts balance_path.
func (g *HTTPGateway) GetBalance(ctx context.Context, vendor string, creds model.Credentials) (model.Balance, error) {
	cfg, err := ParseGatewayConfig(creds)
	if err != nil {
		return model.Balance{}, err
	}
	if err := validateURL(cfg.BalanceURL); err != nil {
		return model.Balance{}, fmt.Errorf("balance_url: %w", err)
	}
	if err := g.jems.Validate(cfg.BalancePath); err != nil {
		return model.Balance{}, fmt.Errorf("invalid JMESPath %q: %w", cfg.BalancePath, err)
	}

	httpReq, err := buildRequest(ctx, cfg.BalanceMethod, cfg.BalanceURL, cfg.Format, cfg.Params)
	if err != nil {
		return model.Balance{}, err
	}
	applyHeaders(httpReq, cfg.Headers)

	status, body, err := g.do(httpReq)
	if err != nil {
		return model.Balance{}, fmt.Errorf("balance request: %w", err)
	}
	if status < 200 || status > 299 {
		return model.Balance{}, fmt.Errorf("balance request: unexpected status %d", status)
	}

	out := model.Balance{Vendor: vendor, Balance: strings.TrimSpace(body), ResponseJSON: body}
	if strings.TrimSpace(cfg.BalancePath) == "" {
		return out, nil
	}
	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return model.Balance{}, fmt.Errorf("balance response is not JSON: %w", err)
	}
	out.Balance = g.extract(cfg.BalancePath, doc)
	return out, nil
}

func (g *HTTPGateway) extract(expr string, doc any) string {
	if strings.TrimSpace(expr) == "" {
		return ""
	}
	v, err := g.jems.Evaluate(expr, doc)
	if err != nil || v == nil {
		return ""
	}
	return stringify(v)
}

func (g *HTTPGateway) do(req *http.Request) (int, string, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	limited := io.LimitReader(resp.Body, maxResponseBodyBytes+1)
	data, readErr := io.ReadAll(limited)
	if len(data) > maxResponseBodyBytes {
		data = data[:maxResponseBodyBytes]
	}
	if closeErr := resp.Body.Close(); closeErr != nil && readErr == nil {
		readErr = closeErr
	}
	if readErr != nil {
		return resp.StatusCode, string(data), fmt.Errorf("read response body: %w", readErr)
	}
	return resp.StatusCode, string(data), nil
}

func buildRequest(ctx context.Context, method, target, format string, params map[string]any) (*http.Request, error) {
	if method == http.MethodGet {
		u, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("invalid URL: %w", err)
		}
		q := u.Query()
		for k, v := range params {
			q.Set(k, stringify(v))
		}
		u.RawQuery = q.Encode()
		return http.NewRequestWithContext(ctx, method, u.String(), nil)
	}

	var body io.Reader
	contentType := "application/x-www-form-urlencoded"
	if format == "json" {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	} else {
		form := url.Values{}
		for k, v := range params {
			form.Set(k, stringify(v))
		}
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	return req, nil
}

func applyHeaders(req *http.Request, headers map[string]any) {
	for k, v := range headers {
		if k = strings.TrimSpace(k); k != "" {
			req.Header.Set(k, stringify(v))
		}
	}
}

func stringify(v any) string {
	switch tv := v.(type) {
	case string:
		return tv
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(tv)
	case nil:
		return ""
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

func truthy(v any) bool {
	switch tv := v.(type) {
	case nil:
		return false
	case bool:
		return tv
	case string:
		s := strings.ToLower(strings.TrimSpace(tv))
		return s != "" && s != "false" && s != "0"
	case float64:
		return tv != 0
	case []any:
		return len(tv) > 0
	case map[string]any:
		return len(tv) > 0
	default:
		return true
	}
}
