package errors

import "errors"

// ErrStoreUnavailable 考勤存储不可用（读失败或连接中断）
// 服务层据此将记录集降级为空集合，而不是向前端返回 500
var ErrStoreUnavailable = errors.New("考勤存储暂不可用")

// ErrDuplicateKey 唯一键冲突（学号已注册等）
var ErrDuplicateKey = errors.New("记录已存在")
