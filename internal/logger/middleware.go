// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package logger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	forwardedHostHeaderKey = "x-forwarded-host"
	forwardedForHeaderKey  = "x-forwarded-for"
	userAgentHeaderKey     = "user-agent"
	requestIDHeaderName    = "x-request-id"

	requestIDKey = "reqId"

	IncomingRequestMessage  = "incoming request"
	RequestCompletedMessage = "request completed"
)

// http is the struct of the log formatter.
type http struct {
	Request  *request  `json:"request,omitempty"`
	Response *response `json:"response,omitempty"`
}

type userAgent struct {
	Original string `json:"original,omitempty"`
}

// request contains the items of request info log.
type request struct {
	Method    string    `json:"method,omitempty"`
	UserAgent userAgent `json:"userAgent"`
}

type responseBody struct {
	Bytes int `json:"bytes,omitempty"`
}

// response contains the items of response info log.
type response struct {
	StatusCode int          `json:"statusCode,omitempty"`
	Body       responseBody `json:"body"`
}

// host has the host information.
type host struct {
	Hostname      string `json:"hostname,omitempty"`
	ForwardedHost string `json:"forwardedHost,omitempty"`
	IP            string `json:"ip,omitempty"`
}

// url info
type url struct {
	Path string `json:"path,omitempty"`
}

func removePort(host string) string {
	return strings.Split(host, ":")[0]
}

// RequestID returns the x-request-id header of c, generating a random uuid when
// the header is missing.
func RequestID(c *fiber.Ctx) string {
	if requestID := c.Get(requestIDHeaderName); requestID != "" {
		return requestID
	}

	// e.g. 16c9c1f2-c001-40d3-bbfe-48857367e7b5
	requestID, err := uuid.NewRandom()
	if err != nil {
		panic(fmt.Errorf("error generating request id: %w", err))
	}
	return requestID.String()
}

// requestInfo is captured before the handler runs because fiber reuses the
// request buffers once the response is written.
type requestInfo struct {
	method string
	agent  string
	path   string
	host   host
}

func newRequestInfo(c *fiber.Ctx) requestInfo {
	return requestInfo{
		method: c.Method(),
		agent:  c.Get(userAgentHeaderKey),
		path:   string(c.Request().URI().RequestURI()),
		host: host{
			ForwardedHost: c.Get(forwardedHostHeaderKey),
			Hostname:      removePort(string(c.Request().Host())),
			IP:            c.Get(forwardedForHeaderKey),
		},
	}
}

func (r requestInfo) request() *request {
	return &request{
		Method:    r.method,
		UserAgent: userAgent{Original: r.agent},
	}
}

// responseInfo returns status code and body size, preferring the values carried
// by a *fiber.Error returned from the handler.
func responseInfo(c *fiber.Ctx, handlerErr error) *response {
	if fiberErr := new(fiber.Error); errors.As(handlerErr, &fiberErr) {
		return &response{
			StatusCode: fiberErr.Code,
			Body:       responseBody{Bytes: len(fiberErr.Error())},
		}
	}

	size := len(c.Response().Body())
	if content := c.GetRespHeader(fiber.HeaderContentLength); content != "" {
		if length, err := strconv.Atoi(content); err == nil {
			size = length
		}
	}
	return &response{
		StatusCode: c.Response().StatusCode(),
		Body:       responseBody{Bytes: size},
	}
}

// RequestMiddlewareLogger is a fiber middleware to log all requests.
// It logs the incoming request and when request is completed, adding latency of the request.
// Paths starting with one of excludedPrefix are not logged.
func RequestMiddlewareLogger(logger Logger, excludedPrefix []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		info := newRequestInfo(c)
		for _, prefix := range excludedPrefix {
			if strings.HasPrefix(info.path, prefix) {
				return c.Next()
			}
		}

		start := time.Now()
		log := logger.WithName("request").With(requestIDKey, RequestID(c))
		c.SetUserContext(WithContext(c.UserContext(), log))

		log.Trace(IncomingRequestMessage,
			"http", http{Request: info.request()},
			"url", url{Path: info.path},
			"host", info.host,
		)

		err := c.Next()

		log.Info(RequestCompletedMessage,
			"http", http{Request: info.request(), Response: responseInfo(c, err)},
			"url", url{Path: info.path},
			"host", info.host,
			"responseTime", float64(time.Since(start).Milliseconds()),
		)
		return err
	}
}
