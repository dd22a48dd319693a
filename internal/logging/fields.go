package logging

import (
	"github.com/jpillora/sizestr"
	"github.com/sirupsen/logrus"
)

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// MirrorFields 提供镜像请求日志的公共字段。
func MirrorFields(path, upstream string, cacheHit bool, requestID string) logrus.Fields {
	fields := logrus.Fields{
		"action":    "mirror",
		"path":      path,
		"upstream":  upstream,
		"cache_hit": cacheHit,
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	return fields
}

// ExchangeFields 描述一次入站交换，供分发器与隧道日志使用。
func ExchangeFields(action, remote, path string) logrus.Fields {
	return logrus.Fields{
		"action": action,
		"remote": remote,
		"path":   path,
	}
}

// Size 将字节数格式化为易读字符串，例如 1.2MB。
func Size(n int) string {
	return sizestr.ToString(int64(n))
}
