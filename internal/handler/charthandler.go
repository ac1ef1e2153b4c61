package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"refcache-api/internal/logic"
	"refcache-api/internal/svc"
	"refcache-api/internal/types"
)

func GetChartHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ChartRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, badRequest(err))
			return
		}

		l := logic.NewGetChartLogic(r.Context(), svcCtx)
		resp, err := l.GetChart(&req)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}
