package server

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"

	catalogdomain "github.com/smallbiznis/vendorhub/internal/catalog/domain"
	"github.com/smallbiznis/vendorhub/internal/retry"
	pkgdb "github.com/smallbiznis/vendorhub/pkg/db"
)

// loadService reads a service with its packages through the cache. Misses
// for the same id share one store read. The cache generation is part of the
// share key, so a read that began before a write is never joined or cached
// after it.
func (s *Server) loadService(ctx context.Context, id string) (*catalogdomain.Service, error) {
	id = strings.TrimSpace(id)
	if svc, ok := s.cache.Get(ctx, id); ok {
		return svc, nil
	}

	gen := s.cache.Generation()
	key := "service:" + id + "@" + strconv.FormatUint(gen, 10)
	call := s.reads.Do(ctx, key, func(ctx context.Context) (*catalogdomain.Service, error) {
		svc, err := retry.Do(ctx, s.retryer, func(ctx context.Context) (*catalogdomain.Service, error) {
			return s.catalogSvc.Find(ctx, id)
		})
		if err != nil {
			return nil, err
		}
		s.cache.SetIfCurrent(id, svc, gen)
		return svc, nil
	})
	return call.Wait(ctx)
}

// writeService applies a versioned patch, retrying while the entity lock is
// held elsewhere or the store reports write contention.
func (s *Server) writeService(ctx context.Context, req catalogdomain.WriteRequest) (catalogdomain.WriteResult, error) {
	res, err := retry.Do(ctx, s.retryer, func(ctx context.Context) (catalogdomain.WriteResult, error) {
		res, err := s.catalogSvc.Write(ctx, req)
		if errors.Is(err, catalogdomain.ErrBusy) || pkgdb.IsContentionErr(err) {
			return res, retry.Transient(err)
		}
		return res, err
	})
	if err != nil {
		return catalogdomain.WriteResult{}, err
	}
	if res.Status == catalogdomain.WriteStatusWritten {
		s.cache.Invalidate(req.ID)
	}
	return res, nil
}

func (s *Server) invalidate(id string) {
	s.cache.Invalidate(strings.TrimSpace(id))
}

func isSnowflakeID(value string) bool {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	return err == nil && id > 0
}
