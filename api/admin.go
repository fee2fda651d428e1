package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BackupMappings snapshots every integration mapping to the backup directory.
func (a Api) BackupMappings(c *gin.Context) {
	path, err := a.mapper.BackupMappings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"message": "backup successful", "path": path})
}

// BackupMappingsS3 snapshots every integration mapping and uploads it to S3.
func (a Api) BackupMappingsS3(c *gin.Context) {
	err := a.mapper.BackupMappingsToS3(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, "backup successful")
}
