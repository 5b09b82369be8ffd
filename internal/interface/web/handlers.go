package web

import (
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/duplexpay/duplexd/internal/core/application"
	"github.com/duplexpay/duplexd/internal/core/domain"
)

func (s *Service) openChannel(c *gin.Context) {
	var body openChannelRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, err)
		return
	}
	req, err := body.toDomain()
	if err != nil {
		abortWithError(c, err)
		return
	}
	channelId, err := s.ledger.OpenChannel(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channelId": channelId})
}

func (s *Service) getChannel(c *gin.Context) {
	channel, err := s.ledger.GetChannel(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toChannelResponse(channel))
}

func (s *Service) deposit(c *gin.Context) {
	var body depositRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, err)
		return
	}
	err := s.ledger.Deposit(c.Request.Context(), application.DepositRequest{
		ChannelId: c.Param("id"),
		Receiver:  domain.Address(body.Receiver),
		From:      domain.Address(body.From),
		Amount:    body.Amount,
		FromPool:  body.FromPool,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Service) snapshotStates(c *gin.Context) {
	var body signedStatesRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, err)
		return
	}
	states, err := body.toDomain()
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := s.ledger.SnapshotStates(c.Request.Context(), states); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Service) intendWithdraw(c *gin.Context) {
	var body intendWithdrawRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, err)
		return
	}
	err := s.ledger.IntendWithdraw(
		c.Request.Context(), c.Param("id"), domain.Address(body.Caller), body.Amount, body.RecipientChannelId,
	)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Service) confirmWithdraw(c *gin.Context) {
	if err := s.ledger.ConfirmWithdraw(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Service) vetoWithdraw(c *gin.Context) {
	var body vetoWithdrawRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, err)
		return
	}
	if err := s.ledger.VetoWithdraw(c.Request.Context(), c.Param("id"), domain.Address(body.Caller)); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Service) cooperativeWithdraw(c *gin.Context) {
	var body cooperativeWithdrawRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, err)
		return
	}
	req, err := body.toDomain()
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := s.ledger.CooperativeWithdraw(c.Request.Context(), req); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Service) intendSettle(c *gin.Context) {
	var body signedStatesRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, err)
		return
	}
	states, err := body.toDomain()
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := s.ledger.IntendSettle(c.Request.Context(), states); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Service) clearPays(c *gin.Context) {
	var body clearPaysRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, err)
		return
	}
	err := s.ledger.ClearPays(
		c.Request.Context(), c.Param("id"), domain.Address(body.PeerFrom), body.List.toDomain(),
	)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Service) confirmSettle(c *gin.Context) {
	balances, settled, err := s.ledger.ConfirmSettle(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settled": settled, "balances": balances})
}

func (s *Service) cooperativeSettle(c *gin.Context) {
	var body cooperativeSettleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, err)
		return
	}
	req, err := body.toDomain()
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := s.ledger.CooperativeSettle(c.Request.Context(), req); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Service) resolveByConditions(c *gin.Context) {
	var body resolveByConditionsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, err)
		return
	}
	pay, err := body.Pay.toDomain()
	if err != nil {
		abortWithError(c, err)
		return
	}
	preimages := make([][]byte, 0, len(body.Preimages))
	for _, p := range body.Preimages {
		raw, err := hex.DecodeString(p)
		if err != nil {
			abortWithError(c, err)
			return
		}
		preimages = append(preimages, raw)
	}
	result, err := s.resolver.ResolvePaymentByConditions(c.Request.Context(), pay, preimages)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, payResultResponse(result))
}

func (s *Service) resolveByVouchedResult(c *gin.Context) {
	var body resolveByVouchedResultRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, err)
		return
	}
	pay, err := body.Pay.toDomain()
	if err != nil {
		abortWithError(c, err)
		return
	}
	sigSrc, err := hex.DecodeString(body.SigSrc)
	if err != nil {
		abortWithError(c, err)
		return
	}
	sigDest, err := hex.DecodeString(body.SigDest)
	if err != nil {
		abortWithError(c, err)
		return
	}
	result, err := s.resolver.ResolvePaymentByVouchedResult(c.Request.Context(), domain.VouchedCondPayResult{
		Pay:     pay,
		Amount:  body.Amount,
		SigSrc:  sigSrc,
		SigDest: sigDest,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, payResultResponse(result))
}
