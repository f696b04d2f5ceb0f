package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pccr10001/callscreen/internal/blacklist"
	"github.com/pccr10001/callscreen/internal/logic"
	"github.com/pccr10001/callscreen/internal/repository"
	"github.com/pccr10001/callscreen/internal/screen"
	"gorm.io/gorm"
)

// Deps are the services the admin API exposes.
type Deps struct {
	DB     *gorm.DB
	Status StatusSource
	Engine screen.Executor
	Oracle *blacklist.Oracle
	Lists  ListWriter
	Bus    *logic.EventBus
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	users := repository.NewUserRepository(d.DB)
	uh := NewUserHandler(users)
	wh := NewWebhookHandler(repository.NewWebhookRepository(d.DB))
	sh := NewScreenHandler(d.Status, d.Engine, repository.NewCallRepository(d.DB), d.Oracle, d.Lists)

	apiGroup := r.Group("/api/v1")
	{
		apiGroup.POST("/login", uh.Login)

		authGroup := apiGroup.Group("/")
		authGroup.Use(AuthMiddleware(users))
		{
			authGroup.POST("/change_password", uh.ChangePassword)

			authGroup.GET("/status", sh.Status)
			authGroup.GET("/calls", sh.ListCalls)
			authGroup.GET("/blacklist", sh.GetBlacklist)
			authGroup.POST("/blacklist/numbers", sh.AddNumber)
			authGroup.POST("/blacklist/names", sh.AddName)
			authGroup.POST("/modem/at", sh.ExecuteAT)
			authGroup.GET("/events", EventsWS(d.Bus))

			adminGroup := authGroup.Group("/")
			adminGroup.Use(AdminOnly())
			{
				adminGroup.GET("/webhooks", wh.ListWebhooks)
				adminGroup.POST("/webhooks", wh.CreateWebhook)
				adminGroup.DELETE("/webhooks/:id", wh.DeleteWebhook)

				adminGroup.GET("/users", uh.ListUsers)
				adminGroup.POST("/users", uh.CreateUser)
				adminGroup.DELETE("/users/:id", uh.DeleteUser)
			}
		}
	}
	return r
}
