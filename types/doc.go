// Copyright (c) StockFetch Authors.
// Licensed under the MIT License.

/*
Package types 提供 stockfetch 的全局共享类型定义。

# 概述

types 是模块最底层的公共包，不依赖任何内部包，为 fetcher、services、
repositories、tasks 等上层模块提供统一的类型契约。跨包共享的数据模型、
错误码均定义于此，以避免循环依赖。

# 核心类型

  - OHLCVBar          — 单日 K 线（开高低收、成交量、成交额、涨跌幅等）
  - StockBasicInfo    — 股票基础信息（交易所、板块、上市日期、股本）
  - StockIndustry     — 行业分类节点（支持自引用父子关系）
  - StockIndustryMapping — 股票与行业的多对多映射
  - BacktestStats     — 回测统计快照
  - Job               — 调度任务的持久化描述（cron 表达式、下次/上次运行时间）
  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码、Retryable、Source 标记

# 主要能力

  - 错误工具链：IsRetryable / GetErrorCode
  - 错误构造：NewValidationError / NewResourceNotFoundError / NewBusinessError /
    NewUpstreamUnavailableError / NewInternalError
*/
package types
