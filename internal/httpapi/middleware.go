package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const (
	// ClientSessionName is the cookie carrying the anonymous browser identity.
	ClientSessionName = "qareport_client"

	sessionKeyClientID  = "client_id"
	contextKeyClientID  = "httpapi_client_id"
	bearerPrefix        = "Bearer "
	headerAuthorization = "Authorization"

	logEventHTTPRequest       = "http"
	logEventLoadSession       = "load_session"
	logEventSaveSession       = "save_session"
	logFieldMethod            = "method"
	logFieldPath              = "path"
	logFieldStatus            = "status"
	logFieldDuration          = "dur"
	logFieldClientIP          = "ip"
	logFieldUserAgent         = "ua"
	adminErrorDisabled        = "admin disabled"
	adminErrorMissingBearer   = "missing bearer"
	adminErrorForbiddenBearer = "forbidden"
)

func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(context *gin.Context) {
		start := time.Now()
		context.Next()
		logger.Info(logEventHTTPRequest,
			zap.String(logFieldMethod, context.Request.Method),
			zap.String(logFieldPath, context.Request.URL.Path),
			zap.Int(logFieldStatus, context.Writer.Status()),
			zap.Duration(logFieldDuration, time.Since(start)),
			zap.String(logFieldClientIP, context.ClientIP()),
			zap.String(logFieldUserAgent, context.Request.UserAgent()),
		)
	}
}

// ClientIdentity assigns every browser a stable anonymous client id kept in a
// session cookie. Preferences and report views are keyed by that id.
func ClientIdentity(store sessions.Store, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(context *gin.Context) {
		session, loadErr := store.Get(context.Request, ClientSessionName)
		if loadErr != nil {
			// A cookie signed with a rotated secret still yields a usable new session.
			logger.Warn(logEventLoadSession, zap.Error(loadErr))
		}
		if session == nil {
			session = sessions.NewSession(store, ClientSessionName)
		}
		clientID, _ := session.Values[sessionKeyClientID].(string)
		if _, parseErr := uuid.Parse(clientID); parseErr != nil {
			clientID = uuid.NewString()
			session.Values[sessionKeyClientID] = clientID
			if saveErr := session.Save(context.Request, context.Writer); saveErr != nil {
				logger.Warn(logEventSaveSession, zap.Error(saveErr))
			}
		}
		context.Set(contextKeyClientID, clientID)
		context.Next()
	}
}

// ClientIDFromContext returns the id set by ClientIdentity.
func ClientIDFromContext(context *gin.Context) (string, bool) {
	value, exists := context.Get(contextKeyClientID)
	if !exists {
		return "", false
	}
	clientID, ok := value.(string)
	return clientID, ok && clientID != ""
}

func AdminAuthMiddleware(adminBearerToken string) gin.HandlerFunc {
	return func(context *gin.Context) {
		if adminBearerToken == "" {
			context.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: adminErrorDisabled})
			return
		}
		authorizationHeader := strings.TrimSpace(context.GetHeader(headerAuthorization))
		if !strings.HasPrefix(authorizationHeader, bearerPrefix) {
			context.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{jsonKeyError: adminErrorMissingBearer})
			return
		}
		provided := strings.TrimPrefix(authorizationHeader, bearerPrefix)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(adminBearerToken)) != 1 {
			context.AbortWithStatusJSON(http.StatusForbidden, gin.H{jsonKeyError: adminErrorForbiddenBearer})
			return
		}
		context.Next()
	}
}
