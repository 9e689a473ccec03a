// Copyright 2020 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/gorse-io/gorse-movies/cmd/version"
	"github.com/gorse-io/gorse-movies/common/log"
	"github.com/gorse-io/gorse-movies/logics"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/emicklei/go-restful/otelrestful"
	"go.uber.org/zap"
)

type HealthStatus struct {
	Ready     bool
	State     string
	Version   string
	NumUsers  int
	NumItems  int
	NumMovies int
}

// CreateWebService creates the REST web service.
func (s *Server) CreateWebService() {
	ws := s.WebService
	ws.Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	ws.Path("/api/")

	ws.Route(ws.GET("/recommend/{user-id}").To(s.getRecommend).
		Filter(s.RateLimitFilter).
		Doc("Recommend movies to a user by item-based collaborative filtering.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("string")).
		Param(ws.QueryParameter("n", "number of returned movies").DataType("integer")).
		Returns(http.StatusOK, "OK", []string{}).
		Writes([]string{}))
	ws.Route(ws.GET("/item/{item-id}/neighbors").To(s.getNeighbors).
		Filter(s.RateLimitFilter).
		Doc("Get movies similar to a movie by content similarity.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Param(ws.PathParameter("item-id", "identifier of the movie").DataType("string")).
		Param(ws.QueryParameter("n", "number of returned movies").DataType("integer")).
		Returns(http.StatusOK, "OK", []string{}).
		Writes([]string{}))
	ws.Route(ws.GET("/health/live").To(s.checkLive).
		Doc("Probe liveness.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
		Returns(http.StatusOK, "OK", HealthStatus{}).
		Writes(HealthStatus{}))
	ws.Route(ws.GET("/health/ready").To(s.checkReady).
		Doc("Probe readiness.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
		Returns(http.StatusOK, "OK", HealthStatus{}).
		Returns(http.StatusServiceUnavailable, "Service Unavailable", HealthStatus{}).
		Writes(HealthStatus{}))
}

// NewHTTPHandler creates the HTTP handler serving the REST API, the API document and
// Prometheus metrics.
func (s *Server) NewHTTPHandler() http.Handler {
	container := restful.NewContainer()
	container.Filter(LogFilter)
	container.Filter(otelrestful.OTelFilter("gorse-movies"))
	container.Add(s.WebService)
	specConfig := restfulspec.Config{
		WebServices: container.RegisteredWebServices(),
		APIPath:     "/apidocs.json",
	}
	container.Add(restfulspec.NewOpenAPIService(specConfig))
	container.Handle("/metrics", promhttp.Handler())
	return container
}

func LogFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	start := time.Now()
	if requestId := req.HeaderParameter("X-Request-ID"); requestId != "" {
		resp.Header().Set("X-Request-ID", requestId)
	}
	chain.ProcessFilter(req, resp)
	RequestsTotal.WithLabelValues(req.SelectedRoutePath(), strconv.Itoa(resp.StatusCode())).Inc()
	log.Logger().Info(fmt.Sprintf("%s %s", req.Request.Method, req.Request.URL),
		zap.Int("status_code", resp.StatusCode()),
		zap.Duration("duration", time.Since(start)))
}

func (s *Server) RateLimitFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	if s.limiter.TakeAvailable(1) == 0 {
		writeError(resp, errors.Trace(ErrRateLimited))
		return
	}
	chain.ProcessFilter(req, resp)
}

// ParseInt parses an integer query parameter, falling back when it is absent.
func ParseInt(request *restful.Request, name string, fallback int) (int, error) {
	valueString := request.QueryParameter(name)
	if valueString == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(valueString)
	if err != nil {
		return 0, errors.NotValidf("%s = %q", name, valueString)
	}
	return value, nil
}

func (s *Server) getRecommend(request *restful.Request, response *restful.Response) {
	s.recommend(logics.Collaborative, request.PathParameter("user-id"), request, response)
}

func (s *Server) getNeighbors(request *restful.Request, response *restful.Response) {
	s.recommend(logics.ContentBased, request.PathParameter("item-id"), request, response)
}

func (s *Server) recommend(recommender, id string, request *restful.Request, response *restful.Response) {
	n, err := ParseInt(request, "n", 0)
	if err != nil {
		writeError(response, err)
		return
	}
	movieIds, err := s.Recommend(request.Request.Context(), recommender, id, n)
	if err != nil {
		writeError(response, err)
		return
	}
	Ok(response, movieIds)
}

func (s *Server) healthStatus() HealthStatus {
	state := s.State()
	status := HealthStatus{
		Ready:   state == Serving,
		State:   state.String(),
		Version: version.Version,
	}
	if d := s.dataset.Load(); d != nil {
		status.NumUsers = d.CountUsers()
		status.NumItems = d.CountItems()
		status.NumMovies = d.CountMovies()
	}
	return status
}

func (s *Server) checkLive(_ *restful.Request, response *restful.Response) {
	Ok(response, s.healthStatus())
}

func (s *Server) checkReady(_ *restful.Request, response *restful.Response) {
	status := s.healthStatus()
	if !status.Ready {
		response.Header().Set("Access-Control-Allow-Origin", "*")
		if err := response.WriteHeaderAndJson(http.StatusServiceUnavailable, status, restful.MIME_JSON); err != nil {
			log.Logger().Error("failed to write json", zap.Error(err))
		}
		return
	}
	Ok(response, status)
}

// writeError writes err with the status code of its kind.
func writeError(response *restful.Response, err error) {
	code := httpStatus(err)
	switch code {
	case http.StatusInternalServerError:
		InternalServerError(response, err)
	case http.StatusBadRequest:
		BadRequest(response, err)
	default:
		response.Header().Set("Access-Control-Allow-Origin", "*")
		if err = response.WriteError(code, err); err != nil {
			log.Logger().Error("failed to write error", zap.Error(err))
		}
	}
}

// BadRequest returns a bad request error.
func BadRequest(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.ResponseLogger(response).Error("bad request", zap.Error(err))
	if err = response.WriteError(http.StatusBadRequest, err); err != nil {
		log.Logger().Error("failed to write error", zap.Error(err))
	}
}

// InternalServerError returns a internal server error.
func InternalServerError(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.ResponseLogger(response).Error("internal server error", zap.Error(err))
	if err = response.WriteError(http.StatusInternalServerError, err); err != nil {
		log.Logger().Error("failed to write error", zap.Error(err))
	}
}

// Ok sends the content as JSON to the client.
func Ok(response *restful.Response, content any) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteAsJson(content); err != nil {
		log.Logger().Error("failed to write json", zap.Error(err))
	}
}
