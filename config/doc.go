// Copyright 2026 StockFetch Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package config 提供 stockfetch 的配置管理功能。

# 概述

config 包负责应用配置的加载与校验，按"默认值 -> YAML 文件 -> 环境变量"
的优先级合并。

# 核心结构

  - Config: 顶层配置聚合，涵盖 Server、Database、Redis、Scheduler、
    Fetcher、Log
  - Loader: 配置加载器，支持 Builder 模式链式设置文件路径、环境变量
    前缀与自定义验证器

# 主要能力

  - 多源加载: YAML 文件、环境变量（STOCKFETCH_ 前缀）、默认值
  - 配置验证: Config.Validate 内置基础校验
  - 驱动相关 DSN 构造: DatabaseConfig.DSN / SchedulerDSN

# 使用示例

	cfg, err := config.NewLoader().
		WithConfigPath("config.yaml").
		WithEnvPrefix("STOCKFETCH").
		Load()
*/
package config
