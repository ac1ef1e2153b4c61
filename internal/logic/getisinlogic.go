package logic

import (
	"context"
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"

	"refcache-api/internal/apperr"
	"refcache-api/internal/resolver"
	"refcache-api/internal/svc"
	"refcache-api/internal/types"
)

type GetIsinLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewGetIsinLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GetIsinLogic {
	return &GetIsinLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *GetIsinLogic) GetIsin(req *types.IsinRequest) (*types.IsinResponse, error) {
	symbols, err := l.svcCtx.Resolver.Resolve(l.ctx, req.Isin)
	if err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: no symbols for isin %s", apperr.ErrNotFound, req.Isin)
	}
	return &types.IsinResponse{
		Isin:    resolver.NormalizeISIN(req.Isin),
		Symbols: toSymbols(symbols),
	}, nil
}
