package api

import (
	"context"
	"strings"
	"time"

	"rentalhub/internal/config"
	"rentalhub/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// Authenticator resolves a bearer token into the caller.
type Authenticator interface {
	Authenticate(token string) (models.Actor, error)
}

const (
	authorizationHeader  = "authorization"
	requestIDMetadataKey = "x-request-id"
	clientKeyUnknown     = "unknown"
	healthMethodPrefix   = "/grpc.health.v1.Health/"
	reflectionPrefix     = "/grpc.reflection."
)

func ChainUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		chained := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			current := interceptors[i]
			next := chained
			chained = func(currentCtx context.Context, currentReq any) (any, error) {
				return current(currentCtx, currentReq, info, next)
			}
		}
		return chained(ctx, req)
	}
}

// AuthInterceptor checks bearer tokens from metadata and rate limits callers.
// Health and reflection are open; anything else needs a valid token.
type AuthInterceptor struct {
	tokens  Authenticator
	rate    config.APIRateLimitConfig
	limiter *rateLimiter
}

func NewAuthInterceptor(tokens Authenticator, rate config.APIRateLimitConfig) *AuthInterceptor {
	return &AuthInterceptor{
		tokens:  tokens,
		rate:    rate,
		limiter: newRateLimiter(rate),
	}
}

func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if err := a.checkRateLimit(ctx); err != nil {
			return nil, err
		}

		token := bearerFromMetadata(ctx)
		if token == "" {
			if isPublicMethod(info.FullMethod) {
				return handler(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}
		if a.tokens == nil {
			return nil, status.Error(codes.Unauthenticated, "authentication is not configured")
		}

		actor, err := a.tokens.Authenticate(token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		actor.IP = peerAddr(ctx)
		return handler(context.WithValue(ctx, actorKey, actor), req)
	}
}

func isPublicMethod(fullMethod string) bool {
	return strings.HasPrefix(fullMethod, healthMethodPrefix) || strings.HasPrefix(fullMethod, reflectionPrefix)
}

func (a *AuthInterceptor) checkRateLimit(ctx context.Context) error {
	if a.rate.RPS <= 0 {
		return nil
	}

	key := bearerFromMetadata(ctx)
	if key == "" {
		key = peerAddr(ctx)
	}
	if !a.limiter.getLimiter(key).Allow() {
		return status.Error(codes.ResourceExhausted, "rate limit exceeded")
	}
	return nil
}

func bearerFromMetadata(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	header := first(md.Get(authorizationHeader))
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return clientKeyUnknown
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}

func LoggingUnaryInterceptor(logger *zerolog.Logger) grpc.UnaryServerInterceptor {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "grpc").Logger()
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := requestIDFromMetadata(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDMetadataKey, requestID))

		start := time.Now()
		resp, err := handler(ctx, req)
		dur := time.Since(start)

		code := codes.OK
		if err != nil {
			code = status.Code(err)
		}

		base.Info().
			Str("request_id", requestID).
			Str("method", info.FullMethod).
			Str("remote", peerAddr(ctx)).
			Str("code", code.String()).
			Dur("duration", dur).
			Msg("grpc request")

		return resp, err
	}
}

func requestIDFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		if vals := md.Get(requestIDMetadataKey); len(vals) > 0 {
			if id := strings.TrimSpace(vals[0]); id != "" {
				return id
			}
		}
	}
	return uuid.NewString()
}
