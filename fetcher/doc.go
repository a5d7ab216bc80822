/*
Package fetcher 定义数据源（行情提供方）的统一协议与健康状态模型。

# 概述

fetcher 是 Provider Registry & Router 体系的最底层契约包：它只描述"一个
数据源能做什么"（StockInfoFetcher / DailyBarFetcher）与"一个数据源当前
状态如何"（HealthChecker / HealthStatus），不包含任何具体厂商实现 —
厂商实现位于 fetcher/providers/* 子包，注册与调度逻辑位于 fetcher/manager。

# 核心接口

  - Provider         — 数据源的最小身份契约（Name）
  - HealthChecker     — 轻量健康探测（HealthCheck(ctx) (*HealthStatus, error)）
  - DailyBarFetcher   — 拉取单只股票的日线数据
  - StockInfoFetcher  — 拉取股票基础信息（全量 / 单只）
  - StockIndustryFetcher — 拉取行业分类与行业成分股
*/
package fetcher
