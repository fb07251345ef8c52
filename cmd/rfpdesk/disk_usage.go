// disk_usage.go — ёмкость диска директории данных (Unix).
package main

import (
	"fmt"
	"syscall"

	"github.com/bigkaa/rfpdesk/internal/api/generated"
)

// getDiskUsage возвращает total, used, available в байтах для path.
func getDiskUsage(path string) (*generated.DiskInfo, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return nil, fmt.Errorf("ошибка statfs %s: %w", path, err)
	}

	total := int64(stat.Blocks) * int64(stat.Bsize)
	available := int64(stat.Bavail) * int64(stat.Bsize)
	return &generated.DiskInfo{
		TotalBytes:     total,
		UsedBytes:      total - available,
		AvailableBytes: available,
	}, nil
}
