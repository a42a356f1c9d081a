package api

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/cuemby/horology/pkg/herror"
	"github.com/cuemby/horology/pkg/log"
)

// kindToCode maps the herror taxonomy onto the nearest
// gRPC status code, so every RPC surface (gateway, cluster) reports
// errors consistently regardless of which package raised them.
var kindToCode = map[herror.Kind]codes.Code{
	herror.KindInvalidInput:    codes.InvalidArgument,
	herror.KindUnauthenticated: codes.Unauthenticated,
	herror.KindPermissionDenied: codes.PermissionDenied,
	herror.KindNotFound:        codes.NotFound,
	herror.KindDuplicate:       codes.AlreadyExists,
	herror.KindQuotaExceeded:   codes.ResourceExhausted,
	herror.KindNotLeader:       codes.Unavailable,
	herror.KindUnavailable:     codes.Unavailable,
	herror.KindDeadlineExceeded: codes.DeadlineExceeded,
	herror.KindInternal:        codes.Internal,
}

// ErrorTranslationInterceptor converts herror.Error values returned by
// handlers into grpc/status errors carrying the matching code, so
// clients see standard gRPC semantics without pkg/api duplicating the
// taxonomy decision in every method.
func ErrorTranslationInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		code, ok := kindToCode[herror.KindOf(err)]
		if !ok {
			code = codes.Internal
		}
		return nil, status.Error(code, err.Error())
	}
}

// StreamErrorTranslationInterceptor is the streaming counterpart of
// ErrorTranslationInterceptor, covering StreamTimerEvents.
func StreamErrorTranslationInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		err := handler(srv, ss)
		if err == nil {
			return nil
		}
		code, ok := kindToCode[herror.KindOf(err)]
		if !ok {
			code = codes.Internal
		}
		return status.Error(code, err.Error())
	}
}

// RequestLogInterceptor logs each unary call at debug level tagged with
// the caller's x-request-id.
func RequestLogInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		requestID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			requestID = firstValue(md, headerRequestID)
		}
		resp, err := handler(ctx, req)
		logger := log.WithComponent("api")
		logger.Debug().
			Str("method", info.FullMethod).
			Str("request_id", requestID).
			Dur("duration", time.Since(start)).
			Err(err).
			Msg("rpc handled")
		return resp, err
	}
}
