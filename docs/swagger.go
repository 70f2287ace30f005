package docs

import "github.com/swaggo/swag"

// @title           Task Board Sync API
// @version         1.0
// @description     API for collaborative task boards with real-time synchronization, presence, and edit locks
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.email  support@taskboard.local

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token

// @tag.name Users
// @tag.description User registration and authentication

// @tag.name Boards
// @tag.description Board management operations

// @tag.name Members
// @tag.description Board membership and role operations

// @tag.name Columns
// @tag.description Column management and reordering operations

// @tag.name Cards
// @tag.description Card management, movement, and edit lock operations

// @tag.name Comments
// @tag.description Card comment operations

// @tag.name Realtime
// @tag.description Websocket transport and presence

// Register swagger info
func SwaggerInfo() *swag.Spec {
	spec, _ := swag.GetSwagger(swag.Name).(*swag.Spec)
	return spec
}
