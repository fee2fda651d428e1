package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JerrettDavis/QuickApiMapper-sub001/internal/apierror"
)

// IngestPayload accepts one inbound payload for the integration serving the
// endpoint, runs it through the mapping pipeline and queues the mapped output
// for delivery.
//
// Responses:
// - 202 Accepted: mapping succeeded; body carries the receipt with field counts.
// - 422 Unprocessable Entity: the engine returned a failure result.
// - 400/404: unknown endpoint, malformed payload or a pre-run behavior error.
func (a Api) IngestPayload(c *gin.Context) {
	endpoint, passed := c.Params.Get("endpoint")
	if !passed {
		c.JSON(http.StatusBadRequest, apierror.NewAPIError(apierror.ErrBadRequest, "endpoint is required. pass endpoint in the route /endpoints/:endpoint", nil))
		return
	}

	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.NewAPIError(apierror.ErrBadRequest, "failed to read request body", err))
		return
	}

	receipt, err := a.mapper.ProcessInbound(c.Request.Context(), endpoint, payload)
	if err != nil {
		respondError(c, err)
		return
	}

	if !receipt.Result.IsSuccess {
		c.JSON(http.StatusUnprocessableEntity, receipt)
		return
	}

	c.JSON(http.StatusAccepted, receipt)
}

// respondError maps service errors onto HTTP statuses. Typed errors keep their
// code and message on the wire; anything else is an internal error.
func respondError(c *gin.Context, err error) {
	if apiErr, ok := err.(apierror.APIError); ok {
		c.JSON(apierror.MapErrorToHTTPStatus(apiErr), apiErr)
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
