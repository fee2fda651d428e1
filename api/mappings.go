package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	model2 "github.com/JerrettDavis/QuickApiMapper-sub001/api/model"
	"github.com/JerrettDavis/QuickApiMapper-sub001/internal/apierror"
)

func (a Api) CreateMapping(c *gin.Context) {
	var newMapping model2.CreateMapping
	if err := c.ShouldBindJSON(&newMapping); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	err := newMapping.ValidateCreateMapping()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.mapper.CreateMapping(c.Request.Context(), newMapping.ToIntegrationMapping())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetMapping(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.mapper.GetMappingByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetAllMappings lists stored integration mappings. Query-parameter filters
// (field_operator=value) switch the call onto the filtered datasource path.
func (a Api) GetAllMappings(c *gin.Context) {
	limit, offset := pagination(c)

	if HasFilters(c) {
		filters, parseErrs := ParseFiltersFromContext(c, nil)
		if len(parseErrs) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"errors": parseErrs})
			return
		}
		opts := ParseQueryOptions(c)
		mappings, total, err := a.mapper.GetAllMappingsWithFilter(c.Request.Context(), filters, opts, limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, FilterResponse{Data: mappings, TotalCount: total})
		return
	}

	resp, err := a.mapper.GetAllMappings(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) UpdateMapping(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var upd model2.CreateMapping
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := upd.ValidateCreateMapping(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	mapping := upd.ToIntegrationMapping()
	mapping.MappingID = id
	if err := a.mapper.UpdateMapping(c.Request.Context(), mapping); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, mapping)
}

func (a Api) DeleteMapping(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	if err := a.mapper.DeleteMapping(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "mapping deleted successfully"})
}

// SearchMappings filters mappings with a JSON filter body instead of query
// parameters.
func (a Api) SearchMappings(c *gin.Context) {
	filters, opts, limit, offset, err := ParseFiltersFromBody(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	mappings, total, err := a.mapper.GetAllMappingsWithFilter(c.Request.Context(), filters, opts, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, FilterResponse{Data: mappings, TotalCount: total})
}

// ImportMappings bulk-loads mappings from an uploaded JSON or CSV file.
func (a Api) ImportMappings(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.NewAPIError(apierror.ErrBadRequest, "file is required. upload a JSON or CSV file under the 'file' field", err))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.NewAPIError(apierror.ErrBadRequest, "failed to open uploaded file", err))
		return
	}
	defer func() {
		_ = file.Close()
	}()

	importID, count, err := a.mapper.ImportMappings(c.Request.Context(), file, fileHeader.Filename)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"import_id": importID, "imported": count})
}

func (a Api) GetGlobalStatics(c *gin.Context) {
	resp, err := a.mapper.GetGlobalStatics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) SetGlobalStatic(c *gin.Context) {
	var req model2.SetGlobalStatic
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.ValidateSetGlobalStatic(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := a.mapper.SetGlobalStatic(c.Request.Context(), req.Key, req.Value); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"key": req.Key, "value": req.Value})
}

func (a Api) GetNamespaces(c *gin.Context) {
	resp, err := a.mapper.GetNamespaces(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) SetNamespace(c *gin.Context) {
	var req model2.SetNamespace
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := req.ValidateSetNamespace(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	if err := a.mapper.SetNamespace(c.Request.Context(), req.Prefix, req.URI); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"prefix": req.Prefix, "uri": req.URI})
}

// ListTransformers reports the names registered in the transformer registry so
// operators can check a mapping's chain before deploying it.
func (a Api) ListTransformers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"transformers": a.mapper.Registry().Names()})
}

func pagination(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
