package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"refcache-api/internal/logic"
	"refcache-api/internal/svc"
	"refcache-api/internal/types"
)

func GetIsinHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.IsinRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, badRequest(err))
			return
		}

		l := logic.NewGetIsinLogic(r.Context(), svcCtx)
		resp, err := l.GetIsin(&req)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}
