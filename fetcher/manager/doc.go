/*
Package manager 实现 Provider Registry & Router：多数据源按方法名注册、
加权评分选择实现、限流 + 并发闭锁、指数退避重试、EMA 成功率统计与懒惰健康探测。

# 概述

manager 是整个 fetcher 体系的调度核心。每个业务方法（如 "daily_bars"、
"basic_info_all"）可以绑定多个数据源实现；调用方不关心具体用哪个数据源，只调用
manager.Call，由 Manager 按权重 × 成功率 × 负载惩罚挑选一个实现执行，失败时
指数退避重试，耗尽重试后标记该绑定不健康，下一次选择时对其懒惰重新探测。

# 核心类型

  - Manager            — 注册表 + 路由器；持有 provider 与 method 绑定表
  - MethodRegistration — 一次方法绑定声明（方法名、数据源、权重、限流、并发度）
  - binding            — 方法-数据源绑定的运行态（限流器、信号量、EMA 统计、健康状态）
  - CallOptions        — 单次调用级别的覆盖项（超时、重试次数）

# 注册方式

Manager 采用"先声明、后物化"的两段式注册：RegisterMethod 仅把声明追加到
待处理队列，CompleteRegistration 一次性校验并把队列物化为 method -> []binding
的静态表。这对应上游实现里"注册装饰器 + 延迟物化"的模式，但用显式两段调用
代替反射扫描。
*/
package manager
