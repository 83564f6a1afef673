package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Daskott/relief/colors"
	"github.com/Daskott/relief/session"
)

type RequestContextKey string

const identityContextKey = RequestContextKey("identity")

// requestIdentity is the caller of a protected route.
type requestIdentity struct {
	User  *session.ProviderUser
	Phone string
}

type ResponseWriterWithStatus struct {
	http.ResponseWriter
	Status int
}

func (r *ResponseWriterWithStatus) WriteHeader(status int) {
	r.Status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		responseWriter := &ResponseWriterWithStatus{
			ResponseWriter: w,
			Status:         200,
		}

		defer func() {
			responseStatus := colors.Green(responseWriter.Status)
			if responseWriter.Status >= 400 {
				responseStatus = colors.Red(responseWriter.Status)
			}

			logg.Infof("%v %v %v %v",
				r.Method,
				r.RequestURI,
				responseStatus,
				colors.Yellow(fmt.Sprintf("[%v]", time.Since(start))))
		}()

		next.ServeHTTP(responseWriter, r)
	})
}

func initialContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// protected only lets requests with a valid bearer token through, and adds the
// caller's identity to the request context.
func (a *App) protected(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeaderList := strings.Split(r.Header.Get("Authorization"), "Bearer ")
		if len(authHeaderList) < 2 || strings.TrimSpace(authHeaderList[1]) == "" {
			writeResponse(w, ResponsePayload{Errors: []string{"no token provided"}}, http.StatusUnauthorized)
			return
		}

		user, err := a.verifier.VerifyToken(r.Context(), strings.TrimSpace(authHeaderList[1]))
		if err != nil {
			writeErrorResponse(w, err)
			return
		}

		identity := requestIdentity{User: user}
		if user.Phone != "" {
			identity.Phone = a.phone.Normalize(user.Phone)
		}

		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFrom(r *http.Request) requestIdentity {
	identity, _ := r.Context().Value(identityContextKey).(requestIdentity)
	return identity
}
