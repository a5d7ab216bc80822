/*
Package dailybar 实现带缺口感知的日线数据缓存服务：按需只回补缺失的交易日区
间，而不是每次请求都全量拉取。

# 概述

Service.GetDailyBars(symbol, start, end) 先读取已缓存的区间，计算
[start,end] 内真正的交易日集合与已缓存日期的差集得到缺口，将连续的缺口日
期合并成尽量少的拉取区间，再并发（上限 50）向 Provider Registry & Router
发起拉取、合并排序去重、写回缓存，最后按原始 [start,end] 截取返回。

# 核心类型

  - Service — 缓存服务主体，持有 *manager.Manager 与 *repositories.DailyBarRepository

# 核心算法（包内非导出函数）

  - mergeConsecutiveDates — 把离散的缺口日期合并为连续区间的 (start,end) 列表
  - mergeBars             — 合并缓存与新拉取的 K 线，按 (symbol,date) 去重、按日期排序
  - filterRange           — 按 [start,end] 截取结果
*/
package dailybar
