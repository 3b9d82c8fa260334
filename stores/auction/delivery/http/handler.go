package http

import (
	"math/big"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/feeflow/goclient/base/ctx"
	"github.com/feeflow/goclient/base/delivery"
	"github.com/feeflow/goclient/domain"
	"github.com/feeflow/goclient/domain/auction"
	"github.com/feeflow/goclient/middleware"
)

type handler struct {
	auction auction.UseCase
	params  auction.Params
	// display decimals of the payment token
	decimals int32
}

func New(e *echo.Echo, uc auction.UseCase, params auction.Params, paymentTokenDecimals int32) {
	h := &handler{
		auction:  uc,
		params:   params,
		decimals: paymentTokenDecimals,
	}

	g := e.Group("/auctions")
	g.GET("", h.getAuctions)
	g.GET("/classification", h.getClassification)
	g.POST("/refresh", h.refresh)
	g.POST("/validate-bid", h.validateBid)
	g.POST("/validate-topup", h.validateTopUp)
	g.POST("/:token/start", h.startAuction, middleware.IsValidAddress("token"))
	g.POST("/:token/bid", h.placeBid, middleware.IsValidAddress("token"))
	g.POST("/:token/topup", h.topUp, middleware.IsValidAddress("token"))
	e.PUT("/modal", h.setModal)
}

type auctionRow struct {
	Token         domain.Address        `json:"token"`
	LotAmount     string                `json:"lotAmount,omitempty"`
	StartTime     domain.UnixTime       `json:"startTime"`
	EndTime       domain.UnixTime       `json:"endTime"`
	Status        auction.Status        `json:"status"`
	HighestBid    string                `json:"highestBid"`
	HighestBidder domain.Address        `json:"highestBidder,omitempty"`
	Participating bool                  `json:"participating"`
	Pulsing       bool                  `json:"pulsing"`
	Participants  []auction.Participant `json:"participants,omitempty"`
}

func (h *handler) toRow(a *auction.Auction, viewer domain.Address, now domain.UnixTime) auctionRow {
	row := auctionRow{
		Token:         a.Token,
		StartTime:     a.StartTime,
		EndTime:       a.StartTime.Add(h.params.AuctionDuration),
		Status:        a.Status(h.params.AuctionDuration, now),
		HighestBid:    h.display(a.HighestBidOrZero()),
		HighestBidder: a.HighestBidder,
		Participating: a.IsParticipant(viewer),
		Pulsing:       h.auction.Pulsing(a.Token),
		Participants:  a.Participants,
	}
	if a.LotAmount != nil {
		row.LotAmount = a.LotAmount.String()
	}
	return row
}

func (h *handler) display(amount *big.Int) string {
	return decimal.NewFromBigInt(amount, -h.decimals).String()
}

// getAuctions returns the merged view. Auctions the viewer participates in
// sort first; within each group newer instances come first.
func (h *handler) getAuctions(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	p := struct {
		Viewer domain.Address `query:"viewer"`
	}{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrBadParamInput)
	}

	now := domain.UnixTime(time.Now().Unix())
	auctions := h.auction.MergedView(ctx)

	rows := make([]auctionRow, 0, len(auctions))
	for _, a := range auctions {
		rows = append(rows, h.toRow(a, p.Viewer, now))
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Participating != rows[j].Participating {
			return rows[i].Participating
		}
		return rows[i].StartTime > rows[j].StartTime
	})

	return delivery.MakeJsonResp(c, http.StatusOK, rows)
}

func (h *handler) getClassification(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	cls, err := h.auction.Classify(ctx, domain.UnixTime(time.Now().Unix()))
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, cls)
}

// refresh runs one reconciliation round on demand.
func (h *handler) refresh(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	p := struct {
		Viewer domain.Address `query:"viewer"`
	}{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrBadParamInput)
	}

	res, err := h.auction.Merge(ctx, p.Viewer)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, res)
}

type validatePayload struct {
	Proposed   string `json:"proposed" validate:"required"`
	CurrentBid string `json:"currentBid"`
	Balance    string `json:"balance" validate:"required"`
}

func (p *validatePayload) parse() (proposed, current, balance *big.Int, err error) {
	nums, err := domain.ToBigInt([]string{p.Proposed, p.Balance})
	if err != nil {
		return nil, nil, nil, err
	}
	proposed, balance = nums[0], nums[1]
	current = domain.Big0
	if p.CurrentBid != "" {
		if nums, err = domain.ToBigInt([]string{p.CurrentBid}); err != nil {
			return nil, nil, nil, err
		}
		current = nums[0]
	}
	return proposed, current, balance, nil
}

func (h *handler) validateBid(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	p := validatePayload{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrBadParamInput)
	}
	if err := c.Validate(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	proposed, current, balance, err := p.parse()
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	if err := h.auction.ValidateNewBid(ctx, proposed, current, balance); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, "ok")
}

func (h *handler) validateTopUp(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	p := validatePayload{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrBadParamInput)
	}
	if err := c.Validate(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	proposed, current, balance, err := p.parse()
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	if err := h.auction.ValidateTopUp(ctx, proposed, current, balance); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, "ok")
}

func (h *handler) startAuction(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	p := struct {
		Token domain.Address `param:"token" validate:"required"`
	}{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrBadParamInput)
	}
	if err := c.Validate(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	hash, err := h.auction.StartAuction(ctx, p.Token)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, hash)
}

type bidPayload struct {
	Token   domain.Address `param:"token" validate:"required"`
	Amount  string         `json:"amount" validate:"required"`
	Balance string         `json:"balance" validate:"required"`
}

func (h *handler) placeBid(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	p := bidPayload{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrBadParamInput)
	}
	if err := c.Validate(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	nums, err := domain.ToBigInt([]string{p.Amount, p.Balance})
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	hash, err := h.auction.PlaceBid(ctx, p.Token, nums[0], nums[1])
	if err == domain.ErrBidBelowMinimum || err == domain.ErrInsufficientBalance || err == domain.ErrZeroAmount {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	} else if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, hash)
}

func (h *handler) topUp(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	p := bidPayload{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrBadParamInput)
	}
	if err := c.Validate(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	nums, err := domain.ToBigInt([]string{p.Amount, p.Balance})
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	hash, err := h.auction.TopUp(ctx, p.Token, nums[0], nums[1])
	if err == domain.ErrBidBelowMinimum || err == domain.ErrInsufficientBalance || err == domain.ErrZeroAmount || err == domain.ErrNotHighestBidder {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	} else if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, hash)
}

// setModal tells the engine a confirmation modal opened or closed. Poll
// rounds are gated while one is open.
func (h *handler) setModal(c echo.Context) error {
	p := struct {
		Open bool `json:"open"`
	}{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrBadParamInput)
	}

	h.auction.SetModalOpen(p.Open)
	return delivery.MakeJsonResp(c, http.StatusOK, "ok")
}
