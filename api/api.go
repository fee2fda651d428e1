package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/typesense/typesense-go/typesense/api"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	mapper "github.com/JerrettDavis/QuickApiMapper-sub001"
	"github.com/JerrettDavis/QuickApiMapper-sub001/api/middleware"
	"github.com/JerrettDavis/QuickApiMapper-sub001/config"
)

type Api struct {
	mapper *mapper.Mapper
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/endpoints/:endpoint", a.IngestPayload)

	router.POST("/mappings", a.CreateMapping)
	router.GET("/mappings/:id", a.GetMapping)
	router.GET("/mappings", a.GetAllMappings)
	router.PUT("/mappings/:id", a.UpdateMapping)
	router.DELETE("/mappings/:id", a.DeleteMapping)
	router.POST("/mappings/search", a.SearchMappings)
	router.POST("/mappings/import", a.ImportMappings)

	router.GET("/statics", a.GetGlobalStatics)
	router.POST("/statics", a.SetGlobalStatic)
	router.GET("/namespaces", a.GetNamespaces)
	router.POST("/namespaces", a.SetNamespace)

	router.GET("/transformers", a.ListTransformers)

	router.GET("/captures", a.GetAllCaptures)
	router.GET("/captures/:id", a.GetCapture)
	router.GET("/captures/mappings/:mapping_name", a.GetCapturesByMapping)
	router.POST("/captures/search", a.SearchCaptures)

	router.POST("/hooks", a.RegisterHook)
	router.GET("/hooks", a.ListHooks)
	router.GET("/hooks/:id", a.GetHook)
	router.PUT("/hooks/:id", a.UpdateHook)
	router.DELETE("/hooks/:id", a.DeleteHook)

	router.POST("/reindex", a.StartReindex)
	router.GET("/reindex/progress", a.GetReindexProgress)

	router.GET("/backup", a.BackupMappings)
	router.GET("/backup-s3", a.BackupMappingsS3)

	router.POST("/search/:collection", a.Search)
	router.POST("/multi-search", a.MultiSearch)
	return a.router
}

func NewAPI(m *mapper.Mapper) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	if conf.EnableTelemetry {
		r.Use(otelgin.Middleware(conf.ProjectName))
	}
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{mapper: m, router: r}
}

func (a Api) Search(c *gin.Context) {
	collection, passed := c.Params.Get("collection")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "collection is required. pass collection in the route /:collection"})
		return
	}

	var query api.SearchCollectionParams
	err := c.BindJSON(&query)
	if err != nil {
		return
	}

	resp, err := a.mapper.Search(c.Request.Context(), collection, &query)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) MultiSearch(c *gin.Context) {
	var searches api.MultiSearchSearchesParameter
	if err := c.BindJSON(&searches); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := a.mapper.MultiSearch(c.Request.Context(), searches)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}
