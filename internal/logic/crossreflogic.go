package logic

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"refcache-api/internal/svc"
	"refcache-api/internal/types"
)

type CrossrefLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewCrossrefLogic(ctx context.Context, svcCtx *svc.ServiceContext) *CrossrefLogic {
	return &CrossrefLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *CrossrefLogic) Crossref(req *types.CrossrefRequest) (*types.CrossrefResponse, error) {
	report, groups, err := l.svcCtx.Catalog.IndexByIsin(l.ctx, req.Isins, req.Force)
	if err != nil {
		return nil, err
	}
	resp := &types.CrossrefResponse{Items: make([]types.CrossrefItem, 0, len(report.Items))}
	for _, it := range report.Items {
		resp.Items = append(resp.Items, types.CrossrefItem{
			Isin:    it.Isin,
			Status:  it.Status,
			Message: it.Message,
			Figis:   toFigis(groups[it.Isin]),
		})
	}
	return resp, nil
}

// DeleteCrossref drops the stored FIGI groups of req.Isins, or every group when none are given.
func (l *CrossrefLogic) DeleteCrossref(req *types.CrossrefDeleteRequest) (*types.DeleteResponse, error) {
	var (
		n   int64
		err error
	)
	if len(req.Isins) == 0 {
		n, err = l.svcCtx.Catalog.DeleteAllCrossref(l.ctx)
	} else {
		n, err = l.svcCtx.Catalog.DeleteCrossrefByIsin(l.ctx, req.Isins)
	}
	if err != nil {
		return nil, err
	}
	l.Infof("crossref reset, %d rows removed", n)
	return &types.DeleteResponse{Deleted: n}, nil
}
