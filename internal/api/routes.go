package api

import (
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arblift/stylusctl/internal/lifecycle"
)

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.appeared).String(),
			"component": "stylusctl-api",
			"node":      s.name,
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"uptime": time.Since(s.appeared).String(),
			"node":   s.name,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/programs", func(c *gin.Context) {
		records := s.registry.List()
		out := make([]gin.H, 0, len(records))
		for i := range records {
			out = append(out, renderProgram(records[i]))
		}
		c.JSON(http.StatusOK, gin.H{"programs": out})
	})

	s.router.GET("/programs/:address", func(c *gin.Context) {
		raw := c.Param("address")
		if !common.IsHexAddress(raw) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address"})
			return
		}
		record, ok := s.registry.Lookup(common.HexToAddress(raw))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "program not registered"})
			return
		}
		c.JSON(http.StatusOK, renderProgram(record))
	})

	s.router.GET("/chain/block", func(c *gin.Context) {
		if s.backend == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no backend configured"})
			return
		}
		num, err := s.backend.BlockNumber(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"block_number": num})
	})
}

func renderProgram(record lifecycle.DeployedProgram) gin.H {
	out := gin.H{
		"address":       record.Address.Hex(),
		"code_hash":     record.CodeHash.Hex(),
		"state":         record.State(),
		"activated":     record.Activated,
		"registered_at": record.RegisteredAt.UTC().Format(time.RFC3339),
	}
	if record.Receipt != nil {
		out["version"] = record.Receipt.Version
		if record.Receipt.DataFee != nil {
			out["data_fee"] = record.Receipt.DataFee.Dec()
		} else {
			out["data_fee"] = "0"
		}
	}
	return out
}
