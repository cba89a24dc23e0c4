package api

import (
	"github.com/gin-gonic/gin"

	"github.com/CallumBoase/PDF2Audio/api/handler"
	"github.com/CallumBoase/PDF2Audio/api/middleware"
)

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(conversionHandler *handler.ConversionHandler) *gin.Engine {
	// 创建默认的Gin路由引擎
	router := gin.New()
	router.Use(gin.Recovery())

	// 应用全局中间件
	router.Use(Cors())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())
	router.Use(middleware.SetTraceID())

	// 在调试模式下记录请求体和响应体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestBodyLog())
		router.Use(middleware.ResponseLogger())
	}

	// 创建API分组
	api := router.Group("/api")
	{
		// 转换任务API
		convGroup := api.Group("/conversions")
		{
			// 上传文件并创建转换 - POST /api/conversions
			convGroup.POST("", conversionHandler.CreateConversion)

			// 获取转换列表 - GET /api/conversions
			convGroup.GET("", conversionHandler.ListConversions)

			// 获取转换状态 - GET /api/conversions/:id
			convGroup.GET("/:id", conversionHandler.GetConversion)

			// 下载合成音频 - GET /api/conversions/:id/audio
			convGroup.GET("/:id/audio", conversionHandler.GetAudio)

			// 获取提取文本 - GET /api/conversions/:id/text
			convGroup.GET("/:id/text", conversionHandler.GetText)

			// 删除转换任务 - DELETE /api/conversions/:id
			convGroup.DELETE("/:id", conversionHandler.DeleteConversion)
		}

		// 可用音色和模型 - GET /api/voices
		api.GET("/voices", conversionHandler.ListVoices)

		// 健康检查API
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "ok",
			})
		})
	}

	return router
}

// Cors 跨域资源共享中间件
// 浏览器端直接调用上传接口时需要
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
