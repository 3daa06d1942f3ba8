package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/catalogx/internal/api/handler"
	"github.com/timmy/catalogx/internal/api/middleware"
	"github.com/timmy/catalogx/internal/domain"
	"github.com/timmy/catalogx/internal/logger"
	"github.com/timmy/catalogx/internal/repository"
	"github.com/timmy/catalogx/internal/service"
)

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Gateway        *service.Gateway
	Engine         *service.UpsertEngine
	Jobs           *service.JobQuery
	Companies      *repository.CompanyRepository
	HealthChecks   map[string]handler.HealthCheck
	MaxUploadBytes int64
	Logger         *logger.Logger
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps Deps, mode string, cors middleware.CORSConfig) *gin.Engine {
	// Set Gin mode
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(cors))

	healthHandler := handler.NewHealthHandler(deps.HealthChecks)
	importHandler := handler.NewImportHandler(deps.Gateway, deps.MaxUploadBytes)
	catalogHandler := handler.NewCatalogHandler(deps.Engine)
	exchangeHandler := handler.NewExchangeHandler(deps.Jobs)

	r.GET("/health", healthHandler.Health)

	member := middleware.RequireRole(deps.Companies, domain.RoleMember)
	admin := middleware.RequireRole(deps.Companies, domain.RoleAdmin)

	s := r.Group("/", middleware.Session())
	{
		// Session company
		s.POST("/import-data", admin, importHandler.Import)
		s.POST("/price", admin, catalogHandler.UpsertPrices)
		s.POST("/stock-balance", admin, catalogHandler.UpsertStockBalances)

		// Company in path
		company := s.Group("/company/:id")
		{
			company.POST("/product", admin, catalogHandler.UpsertProducts)
			company.GET("/exchange-jobs", member, exchangeHandler.ListJobs)
			company.GET("/exchange-jobs/:jobId", member, exchangeHandler.GetJob)
			company.GET("/exchange-jobs/:jobId/logs", member, exchangeHandler.ListLogs)
		}
	}

	return r
}
