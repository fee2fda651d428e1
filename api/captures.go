/*
Copyright 2025 QuickApiMapper Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetCapture retrieves one message capture by ID.
func (a Api) GetCapture(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.mapper.GetCaptureByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetAllCaptures lists stored captures, newest first. Query-parameter filters
// switch onto the filtered datasource path, same as the mappings listing.
func (a Api) GetAllCaptures(c *gin.Context) {
	limit, offset := pagination(c)

	if HasFilters(c) {
		filters, parseErrs := ParseFiltersFromContext(c, nil)
		if len(parseErrs) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"errors": parseErrs})
			return
		}
		opts := ParseQueryOptions(c)
		captures, total, err := a.mapper.GetAllCapturesWithFilter(c.Request.Context(), filters, opts, limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, FilterResponse{Data: captures, TotalCount: total})
		return
	}

	resp, err := a.mapper.GetAllCaptures(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetCapturesByMapping lists captures recorded for one integration mapping.
func (a Api) GetCapturesByMapping(c *gin.Context) {
	mappingName, passed := c.Params.Get("mapping_name")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mapping_name is required. pass it in the route /captures/mappings/:mapping_name"})
		return
	}

	limit, offset := pagination(c)
	resp, err := a.mapper.GetCapturesByMapping(c.Request.Context(), mappingName, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// SearchCaptures filters captures with a JSON filter body.
func (a Api) SearchCaptures(c *gin.Context) {
	filters, opts, limit, offset, err := ParseFiltersFromBody(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	captures, total, err := a.mapper.GetAllCapturesWithFilter(c.Request.Context(), filters, opts, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, FilterResponse{Data: captures, TotalCount: total})
}
