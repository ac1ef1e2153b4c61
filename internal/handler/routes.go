package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest"

	"refcache-api/internal/svc"
)

func RegisterHandlers(server *rest.Server, serverCtx *svc.ServiceContext) {
	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodGet,
				Path:    "/isin/:isin",
				Handler: GetIsinHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/chart/:period",
				Handler: GetChartHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/search",
				Handler: SearchHandler(serverCtx),
			},
		},
		rest.WithPrefix("/v1"),
	)

	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodPost,
				Path:    "/catalog",
				Handler: LoadCatalogHandler(serverCtx),
			},
			{
				Method:  http.MethodDelete,
				Path:    "/catalog",
				Handler: DeleteCatalogHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/crossref",
				Handler: CrossrefHandler(serverCtx),
			},
			{
				Method:  http.MethodDelete,
				Path:    "/crossref",
				Handler: DeleteCrossrefHandler(serverCtx),
			},
		},
		rest.WithPrefix("/v1/admin"),
	)
}
