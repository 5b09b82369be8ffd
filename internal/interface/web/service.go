package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/duplexpay/duplexd/internal/core/application"
	"github.com/duplexpay/duplexd/internal/core/domain"
)

// Service exposes the ledger and resolver operations over a JSON API.
type Service struct {
	ledger   *application.LedgerService
	resolver *application.PayResolver
	server   *http.Server
}

func NewService(port uint32, ledger *application.LedgerService, resolver *application.PayResolver) *Service {
	svc := &Service{ledger: ledger, resolver: resolver}
	svc.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: svc.router(),
	}
	return svc
}

func (s *Service) Start() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("web server exited")
		}
	}()
	log.Infof("web interface listening on %s", s.server.Addr)
}

func (s *Service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// nolint:all
	s.server.Shutdown(ctx)
}

func (s *Service) router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	v1 := router.Group("/v1")
	{
		v1.POST("/channels/open", s.openChannel)
		v1.GET("/channels/:id", s.getChannel)
		v1.POST("/channels/:id/deposit", s.deposit)
		v1.POST("/channels/snapshot", s.snapshotStates)
		v1.POST("/channels/:id/withdraw/intend", s.intendWithdraw)
		v1.POST("/channels/:id/withdraw/confirm", s.confirmWithdraw)
		v1.POST("/channels/:id/withdraw/veto", s.vetoWithdraw)
		v1.POST("/channels/cooperative-withdraw", s.cooperativeWithdraw)
		v1.POST("/channels/intend-settle", s.intendSettle)
		v1.POST("/channels/:id/clear-pays", s.clearPays)
		v1.POST("/channels/:id/confirm-settle", s.confirmSettle)
		v1.POST("/channels/cooperative-settle", s.cooperativeSettle)
		v1.POST("/pays/resolve-conditions", s.resolveByConditions)
		v1.POST("/pays/resolve-vouched", s.resolveByVouchedResult)
	}
	return router
}

func abortWithError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, domain.ErrChannelNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidSignature), errors.Is(err, domain.ErrNotPeer), errors.Is(err, domain.ErrNotOwner):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrOccupiedChannelId), errors.Is(err, domain.ErrPendingIntentExists), errors.Is(err, domain.ErrSeqNumError):
		status = http.StatusConflict
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
