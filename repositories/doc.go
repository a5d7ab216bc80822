/*
Package repositories 提供通用的 upsert / 分页查询能力，以及面向每张持久化表的
具体仓储实现（日线数据、股票基础信息、回测统计、行业分类）。

# 概述

所有写路径统一走 Upsert / UpsertMany：以业务唯一键（而非自增主键）做冲突
判定，命中冲突时更新除冲突列与自增主键之外的全部列。这与上游实现用
ORM 的 on_conflict_do_update 是同一思路，这里用 gorm 的 clause.OnConflict
表达。

# 核心类型

  - Upsert[T] / UpsertMany[T] — 泛型冲突更新写入
  - ListPaged[T]              — offset/limit 分页，并行 COUNT(*)
  - DailyBarRepository        — stock_daily_data 仓储
  - StockBasicInfoRepository  — stock_basic_info 仓储
  - StockIndustryRepository   — stock_industry / stock_industry_mapping 仓储
  - BacktestStatsRepository   — backtest_stats 仓储
*/
package repositories
