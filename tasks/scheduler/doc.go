/*
Package scheduler 实现 cron 驱动的刷新任务调度器：持久化任务存储、误点容忍
窗口（misfire grace）、启动即跑（run-on-start）与双执行器模型（异步 goroutine
与有界线程池）。

# 概述

Scheduler 包装 robfig/cron/v3，在其之上加了三样上游实现有但 cron/v3 本身
没有的能力：

  - 任务持久化：每个任务的 cron 表达式与运行时间戳写入 scheduler_jobs 表
    （types.Job）。Start 只调度本进程经 AddJob 注册的任务，不从该表读回任务。
  - 误点容忍：如果某次触发时间与实际执行时间的差超过 MisfireGraceTime，
    本次触发被跳过而不是"迟到补跑"。
  - 启动即跑：RunOnStart 通过 time.AfterFunc 注册一次性立即触发，而不是在
    AddJob 内联调用 —— 内联调用会与 cron 自身的事件循环竞争，是上游实现里
    一个已知问题的修复点。

# 核心类型

  - Scheduler — cron.Cron 包装，负责任务注册、误点判定、双执行器派发
  - JobStore  — scheduler_jobs 表的 gorm 读写
  - Executor  — "async"（独立 goroutine）或 "thread"（有界线程池）
*/
package scheduler
