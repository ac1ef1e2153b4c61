package logic

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"refcache-api/internal/svc"
	"refcache-api/internal/types"
)

type CatalogAdminLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewCatalogAdminLogic(ctx context.Context, svcCtx *svc.ServiceContext) *CatalogAdminLogic {
	return &CatalogAdminLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *CatalogAdminLogic) LoadCatalog() (*types.CatalogLoadResponse, error) {
	report, err := l.svcCtx.Catalog.LoadCatalog(l.ctx)
	if err != nil {
		return nil, err
	}
	resp := &types.CatalogLoadResponse{
		RunId:    report.RunID,
		Lists:    make([]types.CatalogListReport, 0, len(report.Lists)),
		Received: report.Received,
		Stored:   report.Stored,
		Invalid:  report.Invalid,
		Failed:   report.Failed,
	}
	for _, rep := range report.Lists {
		resp.Lists = append(resp.Lists, types.CatalogListReport(rep))
	}
	return resp, nil
}

func (l *CatalogAdminLogic) DeleteCatalog() (*types.DeleteResponse, error) {
	n, err := l.svcCtx.Catalog.DeleteSymbols(l.ctx)
	if err != nil {
		return nil, err
	}
	l.Infof("catalog reset, %d symbols removed", n)
	return &types.DeleteResponse{Deleted: n}, nil
}
