package utils

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mmdatafocus/rentease_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

// GetSweepInterval is how often the in-process cycle sweep runs.
// SWEEP_INTERVAL_MINUTES, default hourly.
func GetSweepInterval() time.Duration {
	minutes, err := strconv.Atoi(os.Getenv("SWEEP_INTERVAL_MINUTES"))
	if err != nil || minutes <= 0 {
		return time.Hour
	}
	return time.Duration(minutes) * time.Minute
}

func cycleSnapshotKey(tenantId int) string {
	return "RentCycle:Tenant:" + fmt.Sprint(tenantId)
}

// GetCycleSnapshot reads a tenant's cached rent-cycle view from redis.
// dest should be a pointer to models.RentCycleState (kept as interface{}
// here to avoid a utils -> models import cycle).
func GetCycleSnapshot(tenantId int, dest interface{}) (bool, error) {
	return config.GetRedisObject(cycleSnapshotKey(tenantId), dest)
}

func StoreCycleSnapshot(tenantId int, state interface{}) error {
	return config.SetRedisObject(cycleSnapshotKey(tenantId), state, GetCacheLifespan())
}

// InvalidateCycleSnapshot drops the cached view when a refresh could not
// complete. DB remains the source of truth.
func InvalidateCycleSnapshot(tenantId int) error {
	return config.RemoveRedisKey(cycleSnapshotKey(tenantId))
}
