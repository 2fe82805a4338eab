// Package deployments 嵌入部署相关文件到二进制
//
// 包含：
//   - migrations/*.sql: PostgreSQL 迁移脚本（按文件名顺序执行）
package deployments

import (
	"embed"
	"io/fs"
	"sort"
)

// MigrationFiles 迁移脚本
//
//go:embed migrations/*.sql
var MigrationFiles embed.FS

// Migration 单个迁移脚本
type Migration struct {
	Name string
	SQL  string
}

// Migrations 按文件名排序返回全部迁移脚本
func Migrations() ([]Migration, error) {
	entries, err := fs.ReadDir(MigrationFiles, "migrations")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(MigrationFiles, "migrations/"+name)
		if err != nil {
			return nil, err
		}
		out = append(out, Migration{Name: name, SQL: string(data)})
	}
	return out, nil
}
