package logic

import (
	"context"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"refcache-api/internal/svc"
	"refcache-api/internal/types"
)

type SearchLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewSearchLogic(ctx context.Context, svcCtx *svc.ServiceContext) *SearchLogic {
	return &SearchLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *SearchLogic) Search(req *types.SearchRequest) (*types.SearchResponse, error) {
	symbols, err := l.svcCtx.Search.Search(l.ctx, req.Term)
	if err != nil {
		return nil, err
	}
	return &types.SearchResponse{
		Term:    strings.TrimSpace(req.Term),
		Symbols: toSymbols(symbols),
	}, nil
}
