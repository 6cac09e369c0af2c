// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package server

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/mia-platform/actorlog/internal/forward"
	"github.com/mia-platform/actorlog/internal/logger"
)

type statusResponse struct {
	Status  string `json:"status"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

type errorResponse struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

type recordsResponse struct {
	Accepted int `json:"accepted"`
}

// postRecords logs a JSON record, or an array of records, into the core.
// The whole request is rejected if any record is invalid.
func (s *Server) postRecords(c *fiber.Ctx) error {
	log := logger.FromContext(c.UserContext())

	records, err := forward.DecodeJSONBatch(c.Body())
	if err != nil {
		log.Debug("rejecting records", "error", err.Error())
		return c.Status(http.StatusBadRequest).JSON(errorResponse{
			StatusCode: http.StatusBadRequest,
			Error:      http.StatusText(http.StatusBadRequest),
			Message:    err.Error(),
		})
	}

	for _, record := range records {
		s.core.Log(record.ID, record.Level, record.Target, record.Message, record.KV)
	}

	log.Trace("records accepted", "count", len(records))
	return c.Status(http.StatusAccepted).JSON(recordsResponse{Accepted: len(records)})
}
