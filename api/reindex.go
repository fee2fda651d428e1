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
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// StartReindex triggers a full reindex of mappings and captures into Typesense.
// The reindex runs asynchronously to avoid HTTP timeouts.
//
// Responses:
// - 202 Accepted: Reindex started successfully, returns initial progress.
// - 409 Conflict: If a reindex is already in progress.
func (a Api) StartReindex(c *gin.Context) {
	progress := a.mapper.ReindexProgress()
	if progress.Status == "in_progress" {
		c.JSON(http.StatusConflict, gin.H{
			"error":    "A reindex operation is already in progress",
			"progress": progress,
		})
		return
	}

	go func() {
		_, _ = a.mapper.StartReindex(context.Background())
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"message":  "Reindex operation started",
		"progress": a.mapper.ReindexProgress(),
	})
}

// GetReindexProgress returns the current progress of the reindex operation.
func (a Api) GetReindexProgress(c *gin.Context) {
	progress := a.mapper.ReindexProgress()
	if progress.Status == "" || progress.Status == "pending" {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "No reindex operation has been started",
		})
		return
	}

	c.JSON(http.StatusOK, progress)
}
