package logic

import (
	"context"
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"

	"refcache-api/internal/apperr"
	"refcache-api/internal/svc"
	"refcache-api/internal/types"
)

type GetChartLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewGetChartLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GetChartLogic {
	return &GetChartLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *GetChartLogic) GetChart(req *types.ChartRequest) (*types.ChartResponse, error) {
	series, err := l.svcCtx.Series.Series(l.ctx, req.Symbol, req.Period)
	if err != nil {
		return nil, err
	}
	if len(series.Points) == 0 {
		return nil, fmt.Errorf("%w: no chart data for %s", apperr.ErrNotFound, series.Symbol.Symbol)
	}

	data := make([]types.ChartPoint, 0, len(series.Points))
	for _, p := range series.Points {
		data = append(data, types.ChartPoint{
			Date:           formatDate(p.Date),
			Close:          p.Close.String(),
			Volume:         p.Volume.String(),
			Change:         p.Change.String(),
			ChangePercent:  p.ChangePercent.String(),
			ChangeOverTime: p.ChangeOverTime.String(),
		})
	}
	return &types.ChartResponse{
		Symbol:   series.Symbol.Symbol,
		Period:   string(series.Period),
		Currency: series.Symbol.Currency,
		Data:     data,
	}, nil
}
